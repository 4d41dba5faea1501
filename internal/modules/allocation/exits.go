package allocation

import (
	"github.com/xfw5/Market-Research/internal/domain"
)

// StopLossSweep evaluates every held position against the exit rules and closes
// those that trip one. A position is closed when any of the following holds:
//
//  1. its price is below its MaSamplingDays moving average
//  2. its loss exceeds StopLossThreshold of the cost basis
//  3. its profit status raises the give-back signal
//
// The profit monitor is reconciled first so every held position has a status.
// Failures on one position never abort the sweep.
func (a *CapitalAllocator) StopLossSweep() Report {
	positions := a.portfolio.Positions()
	a.monitor.Reconcile(domain.HeldSymbols(positions))

	report := Report{ExposureBefore: a.UpdateExposure()}
	for _, pos := range positions {
		if pos.Quantity <= 0 {
			continue
		}
		reason, exit := a.evaluateExit(pos)
		if !exit {
			continue
		}
		report.add(a.close(pos.Symbol, reason))
	}
	report.ExposureAfter = a.UpdateExposure()

	a.mu.Lock()
	a.swept = true
	a.mu.Unlock()

	if len(report.Orders) > 0 {
		a.log.Info().
			Int("evaluated", len(positions)).
			Int("closed", report.Closed).
			Msg("Stop-loss sweep complete")
	}
	return report
}

// evaluateExit applies the exit rules to one position
func (a *CapitalAllocator) evaluateExit(pos domain.Position) (ExitReason, bool) {
	price := pos.CurrentPrice
	if current, err := a.market.CurrentPrice(pos.Symbol); err == nil && current > 0 {
		price = current
	}
	if price <= 0 {
		a.log.Warn().Str("symbol", pos.Symbol).Msg("No price for held position, skipping exit checks")
		return "", false
	}

	ma, err := a.market.MovingAverage(pos.Symbol, a.opts.MaSamplingDays, domain.FieldClose)
	switch {
	case err != nil:
		ev := a.log.Warn()
		if isDataUnavailable(err) {
			ev = a.log.Debug()
		}
		ev.Err(err).Str("symbol", pos.Symbol).Msg("Moving average unavailable, skipping trend check")
	case price < ma:
		return ExitTrendBroken, true
	}

	gain := price - pos.AverageCost
	if gain < 0 && pos.AverageCost > 0 && -gain/pos.AverageCost > a.opts.StopLossThreshold {
		return ExitStopLoss, true
	}

	measure := gain
	if a.opts.ProfitMeasure == ProfitPercent && pos.AverageCost > 0 {
		measure = gain / pos.AverageCost * 100
	}
	if raised, _ := a.monitor.Update(pos.Symbol, measure, true); raised {
		return ExitProfitGiveBack, true
	}

	return "", false
}

// SellOffAll closes every held position
func (a *CapitalAllocator) SellOffAll() Report {
	report := Report{ExposureBefore: a.UpdateExposure()}
	for _, pos := range sortByGain(a.portfolio.Positions(), false) {
		report.add(a.close(pos.Symbol, ExitSellOff))
	}
	report.ExposureAfter = a.UpdateExposure()
	return report
}

// SellOffProfitable closes every position with a positive unrealized gain
func (a *CapitalAllocator) SellOffProfitable() Report {
	report := Report{ExposureBefore: a.UpdateExposure()}
	for _, pos := range sortByGain(a.portfolio.Positions(), false) {
		if pos.UnrealizedGain() <= 0 {
			break
		}
		report.add(a.close(pos.Symbol, ExitTakeProfit))
	}
	report.ExposureAfter = a.UpdateExposure()
	return report
}

// SellOffLosing closes every position with a negative unrealized gain
func (a *CapitalAllocator) SellOffLosing() Report {
	report := Report{ExposureBefore: a.UpdateExposure()}
	for _, pos := range sortByGain(a.portfolio.Positions(), true) {
		if pos.UnrealizedGain() >= 0 {
			break
		}
		report.add(a.close(pos.Symbol, ExitCutLoss))
	}
	report.ExposureAfter = a.UpdateExposure()
	return report
}
