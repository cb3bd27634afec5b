package budget

import "time"

// DateLayout задает формат календарной даты в API и ключах агрегатора.
const DateLayout = "2006-01-02"

// Day приводит момент времени к календарной дате (полночь UTC) без смены дня.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Today возвращает текущую календарную дату в заданной таймзоне.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc != nil {
		now = now.In(loc)
	}
	return Day(now)
}

// DaysInMonth возвращает реальную длину месяца (28–31).
func DaysInMonth(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthStart возвращает первый день месяца.
func MonthStart(year, month int) time.Time {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd возвращает последний день месяца.
func MonthEnd(year, month int) time.Time {
	return time.Date(year, time.Month(month), DaysInMonth(year, month), 0, 0, 0, 0, time.UTC)
}

// ParseDate разбирает дату формата YYYY-MM-DD.
func ParseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return Day(parsed), nil
}

// PreviousMonth возвращает год и месяц, предшествующие заданным.
func PreviousMonth(year, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}
