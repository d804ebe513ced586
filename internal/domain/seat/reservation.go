package seat

import "sort"

// UniqueLabels はラベルの重複を除いてソートしたものを返す
func UniqueLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	unique := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		unique = append(unique, l)
	}
	sort.Strings(unique)
	return unique
}

// PlanReservation は要求ラベルと取得済み座席から一括予約の可否を判定する
//
// 判定は集合で行い、入力の重複は1席として扱う。存在しない座席の検出が
// 予約済み座席の検出より優先される。いずれかに該当すればバッチ全体を拒否し、
// 座席は変更しない。成功時は予約状態にした座席をラベル順で返す。
func PlanReservation(requested []string, found []*Seat) ([]*Seat, error) {
	if len(requested) == 0 {
		return nil, ErrInvalidRequest
	}

	byLabel := make(map[string]*Seat, len(found))
	for _, s := range found {
		byLabel[s.Label] = s
	}

	labels := UniqueLabels(requested)

	var missing []string
	for _, l := range labels {
		if _, ok := byLabel[l]; !ok {
			missing = append(missing, l)
		}
	}
	if len(missing) > 0 {
		return nil, &SeatsError{Err: ErrSeatNotFound, Labels: missing}
	}

	var alreadyReserved []string
	for _, l := range labels {
		if byLabel[l].Reserved {
			alreadyReserved = append(alreadyReserved, l)
		}
	}
	if len(alreadyReserved) > 0 {
		return nil, &SeatsError{Err: ErrSeatAlreadyReserved, Labels: alreadyReserved}
	}

	targets := make([]*Seat, 0, len(labels))
	for _, l := range labels {
		s := byLabel[l]
		if err := s.Reserve(); err != nil {
			return nil, err
		}
		targets = append(targets, s)
	}
	return targets, nil
}

// ReservedLabels は予約済み座席のラベルをソートして返す
func ReservedLabels(seats []*Seat) []string {
	labels := make([]string, 0)
	for _, s := range seats {
		if s.Reserved {
			labels = append(labels, s.Label)
		}
	}
	sort.Strings(labels)
	return labels
}
