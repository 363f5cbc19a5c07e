package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClean(t *testing.T) {
	raw := "[00:00.000 --> 00:25.460]  Selamat pagi,\n\n  saya Rina   dari BFI.\t[00:25.460 --> 00:30.100] Iya."
	assert.Equal(t, "Selamat pagi, saya Rina dari BFI. Iya.", Clean(raw))
	assert.Equal(t, "", Clean("   "))
}

func TestExtractMetadata(t *testing.T) {
	m := ExtractMetadata("Selamat pagi, saya Rina dari BFI Finance. Apakah benar dengan Bapak Budi?")
	assert.Equal(t, "Rina", m.AgentName)
	assert.Equal(t, "Budi", m.CustomerName)

	assert.Equal(t, Metadata{}, ExtractMetadata("halo"))
}

func TestExtractAmounts(t *testing.T) {
	got := ExtractAmounts("Tagihan Rp 1.250.000 sudah jatuh tempo, denda 50.000 rupiah, dan Rp.750.000,50 lagi")
	require.Len(t, got, 3)
	assert.Equal(t, 1250000.0, got[0].Value)
	assert.Equal(t, "IDR", got[0].Currency)
	assert.Equal(t, 750000.5, got[1].Value)
	assert.Equal(t, 50000.0, got[2].Value)
	assert.Contains(t, got[2].Context, "denda")
}

func TestParseDateMentions(t *testing.T) {
	got := ParseDateMentions("Saya bayar tanggal 8, atau paling lambat minggu depan. Besok saya konfirmasi.")
	require.Len(t, got, 3)
	assert.Equal(t, "specific_date", got[0].Type)
	assert.Equal(t, "8", got[0].SpecificDate)
	assert.Equal(t, "tomorrow", got[1].Type)
	assert.Equal(t, "Besok", got[1].Match)
	assert.Equal(t, "next_week", got[2].Type)
	assert.Empty(t, got[2].SpecificDate)
}

func TestExtractHints(t *testing.T) {
	h := ExtractHints("saya Dewi dari BFI, Ibu Sari, hari ini Rp 100.000")
	assert.Equal(t, "Dewi", h.AgentName)
	assert.Equal(t, "Sari", h.CustomerName)
	assert.Len(t, h.Amounts, 1)
	assert.Len(t, h.Dates, 1)
}
