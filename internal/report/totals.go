package report

import (
	"math"

	"github.com/shopspring/decimal"

	"telegram-diet-diary/internal/models"
)

// Totals is a sum of nutrients.
type Totals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
}

// Add returns the componentwise sum.
func (t Totals) Add(o Totals) Totals {
	return Totals{
		Calories: t.Calories + o.Calories,
		Protein:  t.Protein + o.Protein,
		Fat:      t.Fat + o.Fat,
		Carbs:    t.Carbs + o.Carbs,
	}
}

// Sum reduces meals into totals. Missing and non-finite values count as 0.
func Sum(meals []models.Meal) Totals {
	var t Totals
	for i := range meals {
		t.Calories += value(meals[i].Calories)
		t.Protein += value(meals[i].Protein)
		t.Fat += value(meals[i].Fat)
		t.Carbs += value(meals[i].Carbs)
	}
	return t
}

func value(p *float64) float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0
	}
	return *p
}

var hundred = decimal.NewFromInt(100)

// Percentage returns consumed/norm*100 rounded half away from zero to one
// decimal. A non-positive norm yields 0.
func Percentage(consumed, norm float64) float64 {
	if !(norm > 0) || math.IsInf(norm, 0) || math.IsNaN(consumed) || math.IsInf(consumed, 0) {
		return 0
	}
	p := decimal.NewFromFloat(consumed).
		Mul(hundred).
		Div(decimal.NewFromFloat(norm)).
		Round(1)
	f, _ := p.Float64()
	return f
}
