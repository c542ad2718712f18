package extract

import (
	"strings"
	"testing"

	"github.com/modubank/counselbot/internal/models"
)

func TestValidateFieldNumberBounds(t *testing.T) {
	f := &models.FieldDefinition{
		Key: "limit_once", DisplayName: "1회 이체 한도", Type: models.FieldTypeNumber,
		Unit: "원", Min: floatPtr(10000), Max: floatPtr(1e8),
	}

	if ok, _ := ValidateField(5e7, f); !ok {
		t.Error("in-range value rejected")
	}
	if ok, msg := ValidateField(5e8, f); ok || !strings.Contains(msg, "최대") {
		t.Errorf("over-max: ok=%v msg=%q", ok, msg)
	}
	if ok, msg := ValidateField(100.0, f); ok || !strings.Contains(msg, "최소") {
		t.Errorf("under-min: ok=%v msg=%q", ok, msg)
	}
	if ok, _ := ValidateField("오천만원", f); ok {
		t.Error("non-numeric value accepted for a number field")
	}
}

func TestValidateFieldChoice(t *testing.T) {
	f := &models.FieldDefinition{
		Key: "otp_type", DisplayName: "OTP 종류", Type: models.FieldTypeChoice,
		Choices: otpChoices,
	}
	if ok, _ := ValidateField("security_card", f); !ok {
		t.Error("declared choice value rejected")
	}
	if ok, msg := ValidateField("unknown", f); ok || !strings.Contains(msg, "보안카드") {
		t.Errorf("undeclared choice: ok=%v msg=%q", ok, msg)
	}
}

func TestValidateFieldPhone(t *testing.T) {
	f := &models.FieldDefinition{Key: "phone_number", DisplayName: "연락처", Type: models.FieldTypeText, Pattern: "phone"}
	if ok, _ := ValidateField("010-1234-5678", f); !ok {
		t.Error("valid phone rejected")
	}
	if ok, msg := ValidateField("1234", f); ok || !strings.Contains(msg, "010-1234-5678") {
		t.Errorf("invalid phone: ok=%v msg=%q", ok, msg)
	}
}

func TestValidateFieldBoolean(t *testing.T) {
	f := &models.FieldDefinition{Key: "confirm", DisplayName: "확인", Type: models.FieldTypeBoolean}
	if ok, _ := ValidateField(true, f); !ok {
		t.Error("boolean rejected")
	}
	if ok, _ := ValidateField("네", f); ok {
		t.Error("string accepted for a boolean field")
	}
}
