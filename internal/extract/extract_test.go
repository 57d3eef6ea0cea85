package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/violation-lookup/internal/browser"
	"github.com/sells-group/violation-lookup/internal/browser/browsertest"
	"github.com/sells-group/violation-lookup/internal/model"
)

const twoCards = `<html><body>
<div class="violation-card">
  <div class="violation-title">30E - 438.07</div>
  <span class="status-badge"> Chưa xử phạt </span>
  <div class="info-item"><span class="label">Loại xe:</span><span class="value">Ô tô</span></div>
  <div class="info-item"><span class="label">Màu biển:</span><span class="value">Nền mầu trắng, chữ và số màu đen</span></div>
  <div class="info-item"><span class="label">Lỗi vi phạm:</span><span class="value">Điều khiển xe chạy quá tốc độ quy định</span></div>
  <div class="info-item"><span class="label">Thời gian:</span><span class="value">10:15, 01/03/2024</span></div>
  <div class="info-item"><span class="label">Địa điểm:</span><span class="value">Đại lộ Thăng Long</span></div>
  <div class="info-item"><span class="label">Đơn vị phát hiện:</span><span class="value">Đội CSGT số 1</span></div>
  <div class="info-item"><span class="label">Địa chỉ:</span><span class="value">Số 1 Phạm Hùng</span></div>
  <div class="info-item"><span class="label">Đơn vị giải quyết:</span><span class="value">Đội CSGT số 2</span></div>
  <div class="info-item"><span class="label">Địa chỉ:</span><span class="value">Số 2 Trần Duy Hưng</span></div>
  <div class="info-item"><span class="label">Điện thoại:</span><span class="value"> 0243 123 456 </span></div>
</div>
<div class="violation-card">
  <div class="violation-title">51AB12345</div>
  <span class="status-badge">Đã xử phạt</span>
  <div class="info-item"><span class="label">Loại xe:</span><span class="value">Xe máy</span></div>
</div>
</body></html>`

func parse(t *testing.T, html string) browser.Node {
	t.Helper()
	root, err := browser.ParseHTMLString(html)
	require.NoError(t, err)
	return root
}

func TestLabeledValueIndex(t *testing.T) {
	ctx := context.Background()
	e := New(DefaultSelectors())
	card := parse(t, twoCards).Locator(".violation-card").Nth(0)

	assert.Equal(t, model.Found("Số 1 Phạm Hùng"), e.LabeledValue(ctx, card, LabelAddress, 0))
	assert.Equal(t, model.Found("Số 2 Trần Duy Hưng"), e.LabeledValue(ctx, card, LabelAddress, 1))

	third := e.LabeledValue(ctx, card, LabelAddress, 2)
	assert.False(t, third.Present)
	assert.Equal(t, "", third.String())

	assert.False(t, e.LabeledValue(ctx, card, "Không có:", 0).Present)
	assert.False(t, e.LabeledValue(ctx, card, LabelAddress, -1).Present)
}

func TestLabeledValueContainsMatch(t *testing.T) {
	e := New(DefaultSelectors())
	card := parse(t, twoCards).Locator(".violation-card").Nth(0)

	// "Địa chỉ" without the colon still matches both address rows.
	assert.Equal(t, "Số 2 Trần Duy Hưng", e.LabeledValue(context.Background(), card, "Địa chỉ", 1).String())
}

func TestLabeledValueDecomposedLabel(t *testing.T) {
	// "Loại xe:" written with combining marks (NFD).
	html := `<div class="violation-card"><div class="info-item">` +
		"<span class=\"label\">Loa\u0323i xe:</span>" +
		`<span class="value">Ô tô</span></div></div>`
	e := New(DefaultSelectors())
	card := parse(t, html).Locator(".violation-card")

	assert.Equal(t, "Ô tô", e.LabeledValue(context.Background(), card, LabelVehicleType, 0).String())
}

func TestLabeledValueReadErrorIsAbsent(t *testing.T) {
	e := New(DefaultSelectors())
	f := e.LabeledValue(context.Background(), browsertest.ErrNode(errors.New("detached")), LabelTime, 0)
	assert.Equal(t, model.Absent(), f)
}

func TestNormalizePlate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"30E - 438.07", "30E-438.07"},
		{"  51AB12345 ", "51AB12345"},
		{"Biển số: 29A-123.45", "B29A-123.45"},
		{"", ""},
		{"abc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NormalizePlate(tt.in))
		})
	}
}

func TestCards(t *testing.T) {
	e := New(Selectors{})
	records, err := e.Cards(context.Background(), parse(t, twoCards))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "30E-438.07", first.PlateNumber)
	assert.Equal(t, "Chưa xử phạt", first.Status)
	assert.Equal(t, "Ô tô", first.VehicleInfo.VehicleType)
	assert.Equal(t, "Nền mầu trắng, chữ và số màu đen", first.VehicleInfo.PlateColor)
	assert.Equal(t, "Điều khiển xe chạy quá tốc độ quy định", first.ViolationDetail.ViolationType)
	assert.Equal(t, "10:15, 01/03/2024", first.ViolationDetail.Time)
	assert.Equal(t, "Đại lộ Thăng Long", first.ViolationDetail.Location)
	assert.Equal(t, "Đội CSGT số 1", first.ProcessingUnit.DetectingUnit)
	assert.Equal(t, "Số 1 Phạm Hùng", first.ProcessingUnit.DetectingAddress)
	assert.Equal(t, "Đội CSGT số 2", first.ProcessingUnit.ResolvingUnit)
	assert.Equal(t, "Số 2 Trần Duy Hưng", first.ProcessingUnit.ResolvingAddress)
	assert.Equal(t, "0243 123 456", first.ProcessingUnit.Phone)

	second := records[1]
	assert.Equal(t, "51AB12345", second.PlateNumber)
	assert.Equal(t, "Xe máy", second.VehicleInfo.VehicleType)
	assert.Empty(t, second.ProcessingUnit.Phone)
	assert.Empty(t, second.ViolationDetail.Location)
}

func TestCardsEmptyPage(t *testing.T) {
	e := New(DefaultSelectors())
	records, err := e.Cards(context.Background(), parse(t, `<html><body><p>Không tìm thấy</p></body></html>`))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCardsCountError(t *testing.T) {
	e := New(DefaultSelectors())
	_, err := e.Cards(context.Background(), browsertest.ErrNode(errors.New("page crashed")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count cards")
}

func TestCardReadErrorWrapsExtraction(t *testing.T) {
	e := New(DefaultSelectors())
	_, err := e.Card(context.Background(), browsertest.ErrNode(errors.New("detached")))
	assert.ErrorIs(t, err, ErrExtraction)
}

// failingNth serves the wrapped tree but fails the card at index bad.
type failingNth struct {
	browser.Node
	bad int
}

func (n failingNth) Locator(sel string) browser.Node {
	return failingNth{Node: n.Node.Locator(sel), bad: n.bad}
}

func (n failingNth) Nth(i int) browser.Node {
	if i == n.bad {
		return browsertest.ErrNode(errors.New("element detached"))
	}
	return n.Node.Nth(i)
}

func TestCardsDropsUnreadableCard(t *testing.T) {
	e := New(DefaultSelectors())
	root := failingNth{Node: parse(t, twoCards), bad: 1}

	records, err := e.Cards(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "30E-438.07", records[0].PlateNumber)
	assert.Equal(t, "Chưa xử phạt", records[0].Status)
}

func TestCustomSelectors(t *testing.T) {
	html := `<article class="v"><h3>29A12345</h3><em>Mới</em>
<p class="row"><b>Thời gian:</b><i>08:00</i></p></article>`
	e := New(Selectors{Card: ".v", Title: "h3", Badge: "em", InfoItem: ".row", Label: "b", Value: "i"})
	records, err := e.Cards(context.Background(), parse(t, html))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "29A12345", records[0].PlateNumber)
	assert.Equal(t, "Mới", records[0].Status)
	assert.Equal(t, "08:00", records[0].ViolationDetail.Time)
}
