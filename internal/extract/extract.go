// Package extract turns rendered violation cards into typed records.
package extract

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/violation-lookup/internal/browser"
	"github.com/sells-group/violation-lookup/internal/model"
)

// ErrExtraction marks a card that could not be read.
var ErrExtraction = eris.New("extraction failed")

// Selectors locate the parts of a result card.
type Selectors struct {
	Card     string `yaml:"card" mapstructure:"card"`
	Title    string `yaml:"title" mapstructure:"title"`
	Badge    string `yaml:"badge" mapstructure:"badge"`
	InfoItem string `yaml:"info_item" mapstructure:"info_item"`
	Label    string `yaml:"label" mapstructure:"label"`
	Value    string `yaml:"value" mapstructure:"value"`
}

// DefaultSelectors returns the portal's current card markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Card:     ".violation-card",
		Title:    ".violation-title",
		Badge:    ".status-badge",
		InfoItem: ".info-item",
		Label:    ".label",
		Value:    ".value",
	}
}

// Card labels as rendered by the portal.
const (
	LabelVehicleType   = "Loại xe:"
	LabelPlateColor    = "Màu biển:"
	LabelViolationType = "Lỗi vi phạm:"
	LabelTime          = "Thời gian:"
	LabelLocation      = "Địa điểm:"
	LabelDetectingUnit = "Đơn vị phát hiện:"
	LabelAddress       = "Địa chỉ:"
	LabelResolvingUnit = "Đơn vị giải quyết:"
	LabelPhone         = "Điện thoại:"
)

// Extractor reads cards through the browser.Node capability, so the same
// code runs against a live page or a saved HTML file.
type Extractor struct {
	sel Selectors
	log *zap.Logger
}

// New creates an Extractor. Empty selector fields fall back to defaults.
func New(sel Selectors) *Extractor {
	def := DefaultSelectors()
	if sel.Card == "" {
		sel.Card = def.Card
	}
	if sel.Title == "" {
		sel.Title = def.Title
	}
	if sel.Badge == "" {
		sel.Badge = def.Badge
	}
	if sel.InfoItem == "" {
		sel.InfoItem = def.InfoItem
	}
	if sel.Label == "" {
		sel.Label = def.Label
	}
	if sel.Value == "" {
		sel.Value = def.Value
	}
	return &Extractor{
		sel: sel,
		log: zap.L().With(zap.String("component", "extract")),
	}
}

// Selectors returns the selectors in use.
func (e *Extractor) Selectors() Selectors { return e.sel }

// CountCards returns the number of cards under root.
func (e *Extractor) CountCards(ctx context.Context, root browser.Node) (int, error) {
	n, err := root.Locator(e.sel.Card).Count(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "extract: count cards")
	}
	return n, nil
}

// Cards extracts every card under root in document order. Cards that fail
// are logged and dropped. A count failure is returned as an error.
func (e *Extractor) Cards(ctx context.Context, root browser.Node) ([]model.ViolationRecord, error) {
	n, err := e.CountCards(ctx, root)
	if err != nil {
		return nil, err
	}

	cards := root.Locator(e.sel.Card)
	records := make([]model.ViolationRecord, 0, n)
	for i := 0; i < n; i++ {
		rec, err := e.Card(ctx, cards.Nth(i))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			e.log.Warn("dropping unreadable card", zap.Int("index", i), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Card extracts a single card. Title and badge read errors fail the card;
// a missing labeled value is just an empty field.
func (e *Extractor) Card(ctx context.Context, card browser.Node) (model.ViolationRecord, error) {
	title, _, err := card.Locator(e.sel.Title).TextContent(ctx)
	if err != nil {
		return model.ViolationRecord{}, eris.Wrapf(ErrExtraction, "read title: %v", err)
	}
	status, _, err := card.Locator(e.sel.Badge).TextContent(ctx)
	if err != nil {
		return model.ViolationRecord{}, eris.Wrapf(ErrExtraction, "read status: %v", err)
	}

	get := func(label string, index int) string {
		return e.LabeledValue(ctx, card, label, index).String()
	}

	return model.ViolationRecord{
		PlateNumber: NormalizePlate(title),
		Status:      strings.TrimSpace(status),
		VehicleInfo: model.VehicleInfo{
			VehicleType: get(LabelVehicleType, 0),
			PlateColor:  get(LabelPlateColor, 0),
		},
		ViolationDetail: model.ViolationDetail{
			ViolationType: get(LabelViolationType, 0),
			Time:          get(LabelTime, 0),
			Location:      get(LabelLocation, 0),
		},
		ProcessingUnit: model.ProcessingUnit{
			DetectingUnit:    get(LabelDetectingUnit, 0),
			DetectingAddress: get(LabelAddress, 0),
			ResolvingUnit:    get(LabelResolvingUnit, 0),
			ResolvingAddress: get(LabelAddress, 1),
			Phone:            get(LabelPhone, 0),
		},
	}, nil
}

// LabeledValue returns the value of the index-th info item whose label
// contains label. Missing items and read errors yield an absent field.
func (e *Extractor) LabeledValue(ctx context.Context, card browser.Node, label string, index int) model.Field {
	if index < 0 {
		return model.Absent()
	}
	want := normalizeLabel(label)

	items := card.Locator(e.sel.InfoItem)
	n, err := items.Count(ctx)
	if err != nil {
		e.log.Debug("count info items", zap.String("label", label), zap.Error(err))
		return model.Absent()
	}

	seen := 0
	for i := 0; i < n; i++ {
		item := items.Nth(i)
		text, ok, err := item.Locator(e.sel.Label).TextContent(ctx)
		if err != nil {
			e.log.Debug("read label", zap.String("label", label), zap.Int("item", i), zap.Error(err))
			return model.Absent()
		}
		if !ok || !strings.Contains(normalizeLabel(text), want) {
			continue
		}
		if seen < index {
			seen++
			continue
		}
		value, ok, err := item.Locator(e.sel.Value).TextContent(ctx)
		if err != nil || !ok {
			return model.Absent()
		}
		return model.Found(strings.TrimSpace(value))
	}
	return model.Absent()
}

func normalizeLabel(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// NormalizePlate keeps digits, upper-case latin letters, dots and dashes,
// so "30E - 438.07" becomes "30E-438.07".
func NormalizePlate(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		switch {
		case r >= '0' && r <= '9', r >= 'A' && r <= 'Z', r == '.', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
