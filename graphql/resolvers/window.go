package resolvers

import (
	"fmt"

	"gorm.io/datatypes"

	"mes.GO/core/worktime"
)

func window(from, to string) (datatypes.Date, datatypes.Date, error) {
	f, err := worktime.ParseDate(from)
	if err != nil {
		return datatypes.Date{}, datatypes.Date{}, fmt.Errorf("from: %w", err)
	}
	t, err := worktime.ParseDate(to)
	if err != nil {
		return datatypes.Date{}, datatypes.Date{}, fmt.Errorf("to: %w", err)
	}
	return f, t, nil
}
