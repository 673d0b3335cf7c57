package group

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Allowed drift between the sum of custom provider hours and the declared
// total, absorbing client-side rounding.
var roundingTolerance = decimal.RequireFromString("0.01")

// Share is one pairwise payment in a group settlement: a receiver pays a
// provider the given amount of hours.
type Share struct {
	PayerID uuid.UUID       `json:"payer_id"`
	PayeeID uuid.UUID       `json:"payee_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// CalculateSplit computes the pairwise payments settling a group exchange.
// Every provider is paid their slice of the total by every receiver in
// proportion to the receiver's share. Output order is deterministic so
// settlements acquire locks in a stable order. Amounts are rounded to two
// decimal places per pair.
func CalculateSplit(splitType SplitType, totalHours decimal.Decimal, participants []Participant) ([]Share, error) {
	var providers, receivers []Participant
	for _, p := range participants {
		switch p.Role {
		case RoleProvider:
			providers = append(providers, p)
		case RoleReceiver:
			receivers = append(receivers, p)
		}
	}
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if len(receivers) == 0 {
		return nil, ErrNoReceivers
	}

	sort.Slice(providers, func(i, j int) bool {
		return providers[i].UserID.String() < providers[j].UserID.String()
	})
	sort.Slice(receivers, func(i, j int) bool {
		return receivers[i].UserID.String() < receivers[j].UserID.String()
	})

	providerSlice, err := providerSlices(splitType, totalHours, providers)
	if err != nil {
		return nil, err
	}
	receiverFraction, err := receiverFractions(splitType, receivers)
	if err != nil {
		return nil, err
	}

	shares := make([]Share, 0, len(providers)*len(receivers))
	for _, prov := range providers {
		owed := providerSlice[prov.UserID]
		for _, recv := range receivers {
			amount := owed.Mul(receiverFraction[recv.UserID]).Round(2)
			if amount.IsZero() {
				continue
			}
			shares = append(shares, Share{
				PayerID: recv.UserID,
				PayeeID: prov.UserID,
				Amount:  amount,
			})
		}
	}
	return shares, nil
}

// providerSlices returns how much of the total each provider is owed.
func providerSlices(splitType SplitType, totalHours decimal.Decimal, providers []Participant) (map[uuid.UUID]decimal.Decimal, error) {
	slices := make(map[uuid.UUID]decimal.Decimal, len(providers))
	switch splitType {
	case SplitEqual:
		per := totalHours.Div(decimal.NewFromInt(int64(len(providers))))
		for _, p := range providers {
			slices[p.UserID] = per
		}
	case SplitWeighted:
		totalWeight := decimal.Zero
		for _, p := range providers {
			totalWeight = totalWeight.Add(p.Weight)
		}
		if !totalWeight.IsPositive() {
			return nil, ErrZeroWeights
		}
		for _, p := range providers {
			slices[p.UserID] = totalHours.Mul(p.Weight).Div(totalWeight)
		}
	case SplitCustom:
		sum := decimal.Zero
		for _, p := range providers {
			sum = sum.Add(p.Hours)
		}
		if sum.Sub(totalHours).Abs().GreaterThan(roundingTolerance) {
			return nil, ErrCustomSplitSum
		}
		for _, p := range providers {
			slices[p.UserID] = p.Hours
		}
	default:
		return nil, ErrCustomSplitSum
	}
	return slices, nil
}

// receiverFractions returns each receiver's share of the funding burden.
// For custom splits the declared receiver hours set the proportions; equal
// and weighted splits fund evenly or by weight.
func receiverFractions(splitType SplitType, receivers []Participant) (map[uuid.UUID]decimal.Decimal, error) {
	fractions := make(map[uuid.UUID]decimal.Decimal, len(receivers))
	switch splitType {
	case SplitEqual:
		per := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(len(receivers))))
		for _, r := range receivers {
			fractions[r.UserID] = per
		}
	case SplitWeighted:
		totalWeight := decimal.Zero
		for _, r := range receivers {
			totalWeight = totalWeight.Add(r.Weight)
		}
		if !totalWeight.IsPositive() {
			return nil, ErrZeroWeights
		}
		for _, r := range receivers {
			fractions[r.UserID] = r.Weight.Div(totalWeight)
		}
	case SplitCustom:
		totalHours := decimal.Zero
		for _, r := range receivers {
			totalHours = totalHours.Add(r.Hours)
		}
		if !totalHours.IsPositive() {
			// No declared receiver hours, fund evenly.
			per := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(len(receivers))))
			for _, r := range receivers {
				fractions[r.UserID] = per
			}
			return fractions, nil
		}
		for _, r := range receivers {
			fractions[r.UserID] = r.Hours.Div(totalHours)
		}
	}
	return fractions, nil
}
