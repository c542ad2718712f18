package extract

import "testing"

func TestParseAmounts(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"5000만원", 5e7},
		{"5,000만원", 5e7},
		{"1억", 1e8},
		{"1억 2천만원", 1.2e8},
		{"3억5천만원 정도요", 3.5e8},
		{"천만원이요", 0}, // 숫자 없는 표현은 패턴 대상이 아님
		{"500만원으로 할게요", 5e6},
		{"1조 2억", 1.0002e12},
		{"36", 36},
		{"2.5억", 2.5e8},
		{"10000원", 10000},
	}
	for _, tt := range tests {
		amounts := ParseAmounts(tt.in)
		if tt.want == 0 {
			if len(amounts) != 0 {
				t.Errorf("ParseAmounts(%q) = %v, want none", tt.in, amounts)
			}
			continue
		}
		if len(amounts) != 1 {
			t.Fatalf("ParseAmounts(%q) = %v, want one amount", tt.in, amounts)
		}
		if amounts[0].Won != tt.want {
			t.Errorf("ParseAmounts(%q).Won = %v, want %v", tt.in, amounts[0].Won, tt.want)
		}
	}
}

func TestParseAmountsMultiple(t *testing.T) {
	amounts := ParseAmounts("1회 500만원, 1일 1000만원으로 해주세요")
	if len(amounts) != 4 {
		t.Fatalf("ParseAmounts = %v, want 4 segments (1, 500만, 1, 1000만)", amounts)
	}
	if amounts[1].Won != 5e6 || amounts[3].Won != 1e7 {
		t.Errorf("amounts = %v, want 5000000 and 10000000", amounts)
	}
	if amounts[0].Monetary || amounts[2].Monetary {
		t.Error("bare marker digits must not be monetary")
	}
}

func TestParsePolarity(t *testing.T) {
	tests := []struct {
		in    string
		want  bool
		found bool
	}{
		{"네", true, true},
		{"네, 가입할게요", true, true},
		{"예 맞습니다", true, true},
		{"좋아요", true, true},
		{"동의합니다", true, true},
		{"아니요", false, true},
		{"아뇨 괜찮아요", false, true},
		{"됐습니다", false, true},
		{"필요 없어요", false, true},
		{"글쎄요", false, false},
		{"인터넷뱅킹이 뭐에요?", false, false}, // 인터넷 속의 '네'에 반응하면 안 됨
		{"", false, false},
		{"네... 아니다 안 할래요", false, false}, // 긍정과 부정이 함께면 모호
	}
	for _, tt := range tests {
		got, found := ParsePolarity(tt.in)
		if found != tt.found || (found && got != tt.want) {
			t.Errorf("ParsePolarity(%q) = %v, %v, want %v, %v", tt.in, got, found, tt.want, tt.found)
		}
	}
}

func TestParseOrdinal(t *testing.T) {
	tests := []struct {
		in    string
		want  int
		found bool
	}{
		{"첫번째로 할게요", 0, true},
		{"두 번째요", 1, true},
		{"2번으로 해주세요", 1, true},
		{"세번째", 2, true},
		{"보안카드로 할게요", 0, false},
	}
	for _, tt := range tests {
		got, found := ParseOrdinal(tt.in)
		if found != tt.found || (found && got != tt.want) {
			t.Errorf("ParseOrdinal(%q) = %d, %v, want %d, %v", tt.in, got, found, tt.want, tt.found)
		}
	}
}

func TestParsePhone(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		found bool
	}{
		{"010-1234-5678", "010-1234-5678", true},
		{"01012345678이요", "010-1234-5678", true},
		{"010 1234 5678", "010-1234-5678", true},
		{"016-123-4567", "016-123-4567", true},
		{"123-4567", "", false},
		{"전화번호 없어요", "", false},
	}
	for _, tt := range tests {
		got, found := ParsePhone(tt.in)
		if found != tt.found || got != tt.want {
			t.Errorf("ParsePhone(%q) = %q, %v, want %q, %v", tt.in, got, found, tt.want, tt.found)
		}
	}
}

func TestParsePhoneAll(t *testing.T) {
	phones := ParsePhoneAll("010-1111-2222가 아니라 010-3333-4444로 바꿔주세요")
	if len(phones) != 2 || phones[0] != "010-1111-2222" || phones[1] != "010-3333-4444" {
		t.Errorf("ParsePhoneAll = %v", phones)
	}
}

func TestParseShortText(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		found bool
	}{
		{"김철수입니다", "김철수", true},
		{"제 이름은 김철수입니다", "김철수", true},
		{"김철수라고 합니다", "김철수", true},
		{"김철수예요", "김철수", true},
		{"김철수", "김철수", true},
		{"", "", false},
		{"그게 뭐냐면 설명이 좀 긴데요, 사실은 이런 저런 사정이 있어요", "", false},
	}
	for _, tt := range tests {
		got, found := ParseShortText(tt.in)
		if found != tt.found || got != tt.want {
			t.Errorf("ParseShortText(%q) = %q, %v, want %q, %v", tt.in, got, found, tt.want, tt.found)
		}
	}
}
