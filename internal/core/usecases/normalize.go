package usecases

import "github.com/samirrijal/toiletmap/internal/core/domain"

// Normalize maps an open-data record to the detail shown on selection.
// The dataset has no identifier, so the address stands in for id and name.
func Normalize(raw domain.RawPOI) domain.ToiletDetail {
	d := domain.ToiletDetail{
		ID:         raw.Address,
		Name:       raw.Address,
		Type:       raw.Type,
		Hours:      raw.Hours,
		Accessible: raw.Accessible == domain.AccessibleToken,
		District:   raw.District,
	}
	if pt, ok := raw.Point(); ok {
		d.Lat = pt.Lat
		d.Lng = pt.Lon
	}
	return d
}

// NormalizeAll normalizes every record with usable coordinates and drops the rest.
func NormalizeAll(pois []domain.RawPOI) []domain.ToiletDetail {
	out := make([]domain.ToiletDetail, 0, len(pois))
	for _, p := range pois {
		if _, ok := p.Point(); !ok {
			continue
		}
		out = append(out, Normalize(p))
	}
	return out
}
