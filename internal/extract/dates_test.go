package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDateText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain slashes", in: "01/07/2005", want: "01/07/2005"},
		{name: "single digits padded", in: "1/7/2005", want: "01/07/2005"},
		{name: "dots", in: "15.09.1987", want: "15/09/1987"},
		{name: "dashes with spaces", in: "15 - 09 - 1987", want: "15/09/1987"},
		{name: "embedded in line", in: "Ngày sinh: 01/07/2005 abc", want: "01/07/2005"},
		{name: "no date", in: "Quảng Nam", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeDateText(tt.in))
		})
	}
}

func TestNormalizeCompactDate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "valid", in: "01072005", want: "01/07/2005"},
		{name: "embedded", in: "sinh 15091987 x", want: "15/09/1987"},
		{name: "day out of range", in: "32012005", want: ""},
		{name: "month out of range", in: "01132005", want: ""},
		{name: "year too old", in: "01071899", want: ""},
		{name: "year too far", in: "01072101", want: ""},
		{name: "id fragment ignored", in: "04920500", want: ""},
		{name: "too long run", in: "049205000868", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeCompactDate(tt.in))
		})
	}
}

func TestAllDelimitedDates(t *testing.T) {
	text := "Ngày sinh 01/07/2005 cấp 11/04/2021 đến 01/07/2030"
	assert.Equal(t, []string{"01/07/2005", "11/04/2021", "01/07/2030"}, allDelimitedDates(text))
	assert.Nil(t, allDelimitedDates("no dates here"))
}

func TestDateAtLabel(t *testing.T) {
	t.Run("inline", func(t *testing.T) {
		lines := []string{"Ngày sinh: 01/07/2005"}
		assert.Equal(t, "01/07/2005", dateAtLabel(lines, 0))
	})
	t.Run("next line compact", func(t *testing.T) {
		lines := []string{"Ngày sinh / Date of birth", "01072005"}
		assert.Equal(t, "01/07/2005", dateAtLabel(lines, 0))
	})
	t.Run("nothing", func(t *testing.T) {
		lines := []string{"Ngày sinh", "Giới tính: Nam"}
		assert.Equal(t, "", dateAtLabel(lines, 0))
	})
}
