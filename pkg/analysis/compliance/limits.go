package compliance

import (
	"fmt"
	"slices"
	"strings"

	"github.com/RyanBlaney/harmonic-analyzer/pkg/common"
)

// LimitTable maps harmonic order to the permitted peak amplitude in amps.
// It is immutable after construction and safe for concurrent reads.
type LimitTable struct {
	name   string
	limits map[int]float64
	orders []int
}

// NewLimitTable copies limits into a new table. Orders below 2 and
// negative amplitudes are rejected.
func NewLimitTable(name string, limits map[int]float64) (*LimitTable, error) {
	table := &LimitTable{
		name:   name,
		limits: make(map[int]float64, len(limits)),
	}
	for order, limit := range limits {
		if order < 2 {
			return nil, common.NewInvalidConfiguration(fmt.Sprintf("limit table %s: order %d has no limit", name, order), nil)
		}
		if limit < 0 {
			return nil, common.NewInvalidConfiguration(fmt.Sprintf("limit table %s: order %d limit %g is negative", name, order, limit), nil)
		}
		table.limits[order] = limit
	}
	table.orders = make([]int, 0, len(table.limits))
	for order := range table.limits {
		table.orders = append(table.orders, order)
	}
	slices.Sort(table.orders)
	return table, nil
}

func mustLimitTable(name string, limits map[int]float64) *LimitTable {
	table, err := NewLimitTable(name, limits)
	if err != nil {
		panic(err)
	}
	return table
}

// Name identifies the table in reports
func (t *LimitTable) Name() string {
	return t.name
}

// Limit returns the limit for order, or 0 when the order is the
// fundamental or has no entry
func (t *LimitTable) Limit(order int) float64 {
	if t == nil || order < 2 {
		return 0
	}
	return t.limits[order]
}

// Orders returns the orders present, ascending
func (t *LimitTable) Orders() []int {
	return slices.Clone(t.orders)
}

// MaxOrder returns the highest order with a limit
func (t *LimitTable) MaxOrder() int {
	if len(t.orders) == 0 {
		return 0
	}
	return t.orders[len(t.orders)-1]
}

// Truncate returns a copy holding only orders up to maxOrder
func (t *LimitTable) Truncate(name string, maxOrder int) *LimitTable {
	limits := make(map[int]float64)
	for order, limit := range t.limits {
		if order <= maxOrder {
			limits[order] = limit
		}
	}
	return mustLimitTable(name, limits)
}

// IEC 61000-3-2 Class A maximum permissible harmonic current, amps
var classA = mustLimitTable("IEC 61000-3-2 Class A", map[int]float64{
	2: 1.08, 3: 2.30, 4: 0.43, 5: 1.14, 6: 0.30,
	7: 0.77, 8: 0.23, 9: 0.40, 10: 0.184, 11: 0.33,
	12: 0.1533, 13: 0.21, 14: 0.1314, 15: 0.15, 16: 0.115,
	17: 0.1324, 18: 0.1022, 19: 0.1184, 20: 0.092, 21: 0.1071,
	22: 0.0836, 23: 0.0978, 24: 0.0767, 25: 0.09, 26: 0.0708,
	27: 0.0833, 28: 0.0657, 29: 0.0776, 30: 0.0613, 31: 0.0726,
	32: 0.0575, 33: 0.0682, 34: 0.0541, 35: 0.0643, 36: 0.0511,
	37: 0.0608, 38: 0.0484, 39: 0.0577, 40: 0.046,
})

// ClassALimits returns the shared Class A table
func ClassALimits() *LimitTable {
	return classA
}

// Preset bundles a harmonic count with the limit table it is scored against
type Preset struct {
	Name            string      `json:"name" yaml:"name"`
	Description     string      `json:"description" yaml:"description"`
	NumHarmonics    int         `json:"num_harmonics" yaml:"num_harmonics"`
	THDLimitPercent float64     `json:"thd_limit_percent" yaml:"thd_limit_percent"`
	Limits          *LimitTable `json:"-" yaml:"-"`
}

var presets = []Preset{
	{
		Name:            "iec61000-3-2-class-a",
		Description:     "IEC 61000-3-2 Class A, harmonics 2-40",
		NumHarmonics:    40,
		THDLimitPercent: 100,
		Limits:          classA,
	},
	{
		Name:            "quick",
		Description:     "Quick check, harmonics 2-20",
		NumHarmonics:    20,
		THDLimitPercent: 100,
		Limits:          classA.Truncate("IEC 61000-3-2 Class A (2-20)", 20),
	},
	{
		Name:            "wideband",
		Description:     "Wideband survey up to harmonic 50, Class A limits to 40",
		NumHarmonics:    50,
		THDLimitPercent: 100,
		Limits:          classA,
	},
}

// Presets lists the built-in analysis presets
func Presets() []Preset {
	return slices.Clone(presets)
}

// LookupPreset finds a preset by name, case-insensitively
func LookupPreset(name string) (Preset, error) {
	for _, p := range presets {
		if strings.EqualFold(p.Name, strings.TrimSpace(name)) {
			return p, nil
		}
	}
	return Preset{}, common.NewInvalidConfiguration(fmt.Sprintf("unknown preset %q", name), nil)
}
