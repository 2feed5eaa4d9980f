package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDayOfWeek(t *testing.T) {
	tests := []struct {
		name    string
		want    DayOfWeek
		wantErr bool
	}{
		{name: "Понедельник", want: Monday},
		{name: "вторник", want: Tuesday},
		{name: " СРЕДА ", want: Wednesday},
		{name: "Четверг", want: Thursday},
		{name: "Пятница", want: Friday},
		{name: "Суббота", want: Saturday},
		{name: "Воскресенье", want: Sunday},
		{name: "Monday", wantErr: true},
		{name: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDayOfWeek(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStartTime(t *testing.T) {
	tests := []struct {
		value   string
		want    string
		wantErr bool
	}{
		{value: "01.09.2023 9:00:00", want: "09:00:00"},
		{value: "01.09.2023 10:45:00", want: "10:45:00"},
		{value: "1.9.2023 13:50:00", want: "13:50:00"},
		{value: "01.09.2023 15:40", want: "15:40:00"},
		{value: "8:30", want: "08:30:00"},
		{value: "17:25:00", want: "17:25:00"},
		{value: "01.09.2023", wantErr: true},
		{value: "lol", wantErr: true},
		{value: "25:00:00", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := ParseStartTime(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchedule_Key(t *testing.T) {
	s := Schedule{StartTime: "09:00:00", DayOfWeek: Monday, Subject: "Математика", TeacherID: 3, GroupName: "ИУ7-11Б"}
	assert.Equal(t, "MONDAY_09:00:00_Математика_3_ИУ7-11Б", s.Key())

	other := s
	other.TeacherName = "Смирнов"
	assert.Equal(t, s.Key(), other.Key())
	other.GroupName = "ИУ7-12Б"
	assert.NotEqual(t, s.Key(), other.Key())
}
