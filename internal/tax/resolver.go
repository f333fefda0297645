package tax

// RateSource names where the effective rate came from.
type RateSource string

const (
	SourceExemption        RateSource = "customer_exemption"
	SourceExplicit         RateSource = "explicit"
	SourceProduct          RateSource = "product"
	SourceCustomerOverride RateSource = "customer_override"
	SourceDefault          RateSource = "default"
)

// Resolution is the outcome of rate resolution.
type Resolution struct {
	Rate   float64    `json:"rate"`
	Source RateSource `json:"source"`
}

// resolutionRule is one entry of the ordered priority table. The first rule
// whose applies predicate matches supplies the rate; later rules are ignored.
type resolutionRule struct {
	source  RateSource
	applies func(Context) bool
	rate    func(Context) float64
}

// resolutionOrder encodes the priority chain as data so the order itself is
// testable. Exemption short-circuits everything else.
var resolutionOrder = []resolutionRule{
	{
		source:  SourceExemption,
		applies: func(c Context) bool { return c.Settings.AllowCustomerExemption && c.Customer.TaxExempt },
		rate:    func(Context) float64 { return 0 },
	},
	{
		source:  SourceExplicit,
		applies: func(c Context) bool { return c.ExplicitRate != nil },
		rate:    func(c Context) float64 { return *c.ExplicitRate },
	},
	{
		source:  SourceProduct,
		applies: func(c Context) bool { return c.Settings.AllowProductOverride && c.ProductRate != nil },
		rate:    func(c Context) float64 { return *c.ProductRate },
	},
	{
		source:  SourceCustomerOverride,
		applies: func(c Context) bool { return c.Customer.TaxRateOverride != nil },
		rate:    func(c Context) float64 { return *c.Customer.TaxRateOverride },
	},
	{
		source:  SourceDefault,
		applies: func(Context) bool { return true },
		rate:    func(c Context) float64 { return c.Settings.DefaultRate },
	},
}

// Resolve determines the single effective tax rate for a line item. Every
// supplied rate is validated up front; resolution rejects rather than clamps.
func Resolve(ctx Context) (Resolution, error) {
	for _, candidate := range []*float64{ctx.ExplicitRate, ctx.ProductRate, ctx.Customer.TaxRateOverride} {
		if candidate == nil {
			continue
		}
		if err := validRate(*candidate); err != nil {
			return Resolution{}, err
		}
	}
	if err := validRate(ctx.Settings.DefaultRate); err != nil {
		return Resolution{}, err
	}

	for _, rule := range resolutionOrder {
		if rule.applies(ctx) {
			return Resolution{Rate: rule.rate(ctx), Source: rule.source}, nil
		}
	}
	// Unreachable: the default rule always applies.
	return Resolution{Rate: ctx.Settings.DefaultRate, Source: SourceDefault}, nil
}
