package extract

import "testing"

func TestMatchPattern(t *testing.T) {
	patterns := []string{"예약 마감", "Sold Out", ""}
	tests := []struct {
		name    string
		text    string
		want    string
		matched bool
	}{
		{"korean match", "죄송합니다, 해당 날짜는 예약 마감되었습니다", "예약 마감", true},
		{"case insensitive", "This property is SOLD OUT for your dates", "Sold Out", true},
		{"no match", "예약 가능한 날짜입니다", "", false},
		{"empty text", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MatchPattern(tt.text, patterns)
			if ok != tt.matched || got != tt.want {
				t.Fatalf("MatchPattern(%q) = (%q, %v), want (%q, %v)", tt.text, got, ok, tt.want, tt.matched)
			}
		})
	}
}

func TestMatchPatternSkipsEmptyPattern(t *testing.T) {
	if _, ok := MatchPattern("anything", []string{""}); ok {
		t.Fatal("empty pattern must never match")
	}
}

func TestFindPrice(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"won symbol", "1박 요금 ₩150,000 (세금 포함)", "₩150,000"},
		{"won suffix", "총 120,000원 입니다", "120,000원"},
		{"dollar", "from $89 per night", "$89"},
		{"euro with space", "ab € 75,50 pro Nacht", "€ 75,50"},
		{"first of several", "₩90,000 지금, 이전 가격 ₩110,000", "₩90,000"},
		{"none", "가격 정보 없음", ""},
		{"bare number is not a price", "12345 reviews", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FindPrice(tt.text); got != tt.want {
				t.Fatalf("FindPrice(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
