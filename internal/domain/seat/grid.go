package seat

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidGrid = errors.New("座席グリッドの指定が不正です")

// GridLabels は階・列・番号の組み合わせから座席ラベルを生成する
// rows は "A-C" のような範囲か "A" の単一列。生成例: "1F-A1"
func GridLabels(floors int, rows string, cols int) ([]string, error) {
	if floors <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: floors=%d cols=%d", ErrInvalidGrid, floors, cols)
	}
	from, to, err := parseRowRange(rows)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, floors*int(to-from+1)*cols)
	for f := 1; f <= floors; f++ {
		for r := from; r <= to; r++ {
			for c := 1; c <= cols; c++ {
				labels = append(labels, fmt.Sprintf("%dF-%c%d", f, r, c))
			}
		}
	}
	return labels, nil
}

func parseRowRange(rows string) (byte, byte, error) {
	rows = strings.ToUpper(strings.TrimSpace(rows))
	parts := strings.Split(rows, "-")
	switch {
	case len(parts) == 1 && isRowLetter(parts[0]):
		return parts[0][0], parts[0][0], nil
	case len(parts) == 2 && isRowLetter(parts[0]) && isRowLetter(parts[1]) && parts[0][0] <= parts[1][0]:
		return parts[0][0], parts[1][0], nil
	}
	return 0, 0, fmt.Errorf("%w: rows=%q", ErrInvalidGrid, rows)
}

func isRowLetter(s string) bool {
	return len(s) == 1 && s[0] >= 'A' && s[0] <= 'Z'
}
