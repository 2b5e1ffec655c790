package scenarios

import "github.com/aristath/stresslab/internal/modules/market"

func corrMult(v float64) *float64 { return &v }

// Predefined returns the built-in historical stress scenarios. They are
// loaded into the database on demand and marked predefined so user edits
// never overwrite them silently.
func Predefined() []Scenario {
	return []Scenario{
		{
			Name: "2008 Financial Crisis",
			Description: "Severe market crash similar to the 2008 financial crisis. " +
				"Equity markets decline sharply, volatility spikes, correlations increase, " +
				"and investors flee to safe-haven assets.",
			Category: "market_crash",
			Parameters: market.Shock{
				ReturnShock: map[string]float64{
					"SPY": -0.50, "QQQ": -0.55, "DIA": -0.45, "IWM": -0.60,
					"TLT": 0.15, "IEF": 0.08, "SHY": 0.02,
					"LQD": -0.10, "HYG": -0.30, "GLD": 0.05, "USO": -0.50,
				},
				VolatilityMultiplier: map[string]float64{
					"SPY": 2.5, "QQQ": 2.8, "DIA": 2.3, "IWM": 3.0,
					"TLT": 1.5, "HYG": 2.5, "USO": 3.0,
				},
				CorrelationMultiplier: corrMult(1.5),
			},
			Tags:       []string{"historical", "severe", "equity", "credit"},
			Predefined: true,
		},
		{
			Name: "COVID-19 Market Crash",
			Description: "Rapid market crash similar to March 2020 COVID-19 pandemic. " +
				"Swift equity decline, extreme volatility, oil price collapse, " +
				"and flight to safety.",
			Category: "market_crash",
			Parameters: market.Shock{
				ReturnShock: map[string]float64{
					"SPY": -0.34, "QQQ": -0.30, "DIA": -0.37, "IWM": -0.42,
					"TLT": 0.20, "IEF": 0.10,
					"LQD": -0.08, "HYG": -0.22, "GLD": 0.03, "USO": -0.65,
				},
				VolatilityMultiplier: map[string]float64{
					"SPY": 3.0, "QQQ": 2.8, "IWM": 3.5, "HYG": 3.0, "USO": 4.0,
				},
				CorrelationMultiplier: corrMult(1.6),
			},
			Tags:       []string{"historical", "severe", "equity", "oil", "pandemic"},
			Predefined: true,
		},
		{
			Name: "Interest Rate Shock (+200 bps)",
			Description: "Sudden increase in interest rates by 200 basis points. " +
				"Bond prices fall, equity valuations compressed, " +
				"rate-sensitive sectors underperform.",
			Category: "rate_shock",
			Parameters: market.Shock{
				ReturnShock: map[string]float64{
					"SPY": -0.15, "QQQ": -0.20, "DIA": -0.12, "IWM": -0.18,
					"TLT": -0.25, "IEF": -0.12, "SHY": -0.03,
					"LQD": -0.15, "HYG": -0.18, "GLD": -0.05,
				},
				VolatilityMultiplier: map[string]float64{
					"TLT": 2.0, "IEF": 1.8, "LQD": 1.7, "SPY": 1.5, "QQQ": 1.6,
				},
				CorrelationMultiplier: corrMult(1.2),
			},
			Tags:       []string{"rates", "bonds", "moderate"},
			Predefined: true,
		},
		{
			Name: "Oil Price Shock (+100%)",
			Description: "Sudden doubling of oil prices due to supply disruption. " +
				"Energy sector rallies, consumer discretionary declines, " +
				"inflation concerns increase.",
			Category: "commodity_shock",
			Parameters: market.Shock{
				ReturnShock: map[string]float64{
					"USO": 1.00, "SPY": -0.10, "QQQ": -0.12, "IWM": -0.15,
					"TLT": -0.05, "IEF": -0.03, "GLD": 0.10,
				},
				VolatilityMultiplier: map[string]float64{
					"USO": 2.5, "SPY": 1.4, "QQQ": 1.5,
				},
				CorrelationMultiplier: corrMult(1.1),
			},
			Tags:       []string{"commodity", "oil", "inflation", "moderate"},
			Predefined: true,
		},
		{
			Name: "Volatility Spike",
			Description: "Sudden spike in market volatility without major directional moves. " +
				"Increased uncertainty, wider bid-ask spreads, risk-off sentiment.",
			Category: "volatility_spike",
			Parameters: market.Shock{
				ReturnShock: map[string]float64{
					"SPY": -0.05, "QQQ": -0.06, "TLT": 0.03, "GLD": 0.02,
				},
				VolatilityMultiplier: map[string]float64{
					"SPY": 2.0, "QQQ": 2.2, "DIA": 1.9, "IWM": 2.5, "HYG": 2.0,
				},
				CorrelationMultiplier: corrMult(1.3),
			},
			Tags:       []string{"volatility", "moderate", "uncertainty"},
			Predefined: true,
		},
		{
			Name: "Currency Crisis",
			Description: "Major currency devaluation and dollar strength. " +
				"Emerging markets decline, commodities weaken, " +
				"flight to quality assets.",
			Category: "currency_crisis",
			Parameters: market.Shock{
				ReturnShock: map[string]float64{
					"SPY": -0.08, "IWM": -0.12, "TLT": 0.05, "GLD": -0.10, "USO": -0.15,
					"EURUSD=X": -0.15, "GBPUSD=X": -0.12,
				},
				VolatilityMultiplier: map[string]float64{
					"EURUSD=X": 2.5, "GBPUSD=X": 2.3, "SPY": 1.5, "GLD": 1.8,
				},
				CorrelationMultiplier: corrMult(1.2),
			},
			Tags:       []string{"currency", "dollar", "moderate"},
			Predefined: true,
		},
	}
}
