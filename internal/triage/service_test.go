package triage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/afyabook/afyabook/pkg/logging"
)

type stubLLM struct {
	text string
	err  error
	last LLMRequest
}

func (s *stubLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	s.last = req
	if s.err != nil {
		return LLMResponse{}, s.err
	}
	return LLMResponse{Text: s.text}, nil
}

type stubTypes struct {
	types []string
	err   error
}

func (s stubTypes) Types(context.Context) ([]string, error) { return s.types, s.err }

type stubSlots struct {
	booked []string
	err    error
}

func (s stubSlots) BookedSlots(context.Context, string, int64) ([]string, error) {
	return s.booked, s.err
}

func newTestService(llm LLMClient, types TypeSource, slots SlotSource) *Service {
	return NewService(llm, types, slots, logging.Default(), nil, Config{
		Model:             "model-under-test",
		DefaultSpecialist: "General Practitioner",
	})
}

func TestAnalyzeParsesModelResponse(t *testing.T) {
	llm := &stubLLM{text: `{"urgency":"Routine","specialist":"Dentist","summary":"See a dentist.","emergency_flag":false,"confidence":0.8}`}
	svc := newTestService(llm, stubTypes{types: []string{"Dentist", "Cardiologist"}}, stubSlots{})

	a := svc.Analyze(context.Background(), Input{Symptoms: "tooth ache for two days", Language: "en", Age: "34", Location: "Nairobi"})
	if a.Urgency != UrgencyRoutine || a.Specialist != "Dentist" {
		t.Fatalf("unexpected assessment: %+v", a)
	}
	if len(llm.last.System) == 0 || !strings.Contains(llm.last.System[1], "Dentist, Cardiologist") {
		t.Fatalf("available specialists missing from system prompt: %v", llm.last.System)
	}
	if !strings.Contains(llm.last.Messages[0].Content, "tooth ache") {
		t.Fatalf("symptoms missing from prompt: %q", llm.last.Messages[0].Content)
	}
}

func TestAnalyzeToleratesCodeFences(t *testing.T) {
	llm := &stubLLM{text: "```json\n{\"urgency\":\"Emergency\",\"specialist\":\"Cardiologist\",\"summary\":\"Chest pain.\",\"emergency_flag\":true,\"confidence\":0.95}\n```"}
	svc := newTestService(llm, stubTypes{types: []string{"Cardiologist"}}, stubSlots{})

	a := svc.Analyze(context.Background(), Input{Symptoms: "chest pain", Language: "en"})
	if a.Urgency != UrgencyEmergency || !a.EmergencyFlag {
		t.Fatalf("unexpected assessment: %+v", a)
	}
}

func TestAnalyzeSanitizesUrgencyAndSpecialist(t *testing.T) {
	llm := &stubLLM{text: `{"urgency":"Critical","specialist":"Astrologer","summary":"x","confidence":0.5}`}
	svc := newTestService(llm, stubTypes{types: []string{"Dentist", "Cardiologist"}}, stubSlots{})

	a := svc.Analyze(context.Background(), Input{Symptoms: "headache", Language: "en"})
	if a.Urgency != UrgencyUrgent {
		t.Fatalf("invalid urgency not defaulted: %q", a.Urgency)
	}
	if a.Specialist != "Dentist" {
		t.Fatalf("unknown specialist not replaced with first available: %q", a.Specialist)
	}
}

func TestAnalyzeFallsBackOnModelError(t *testing.T) {
	llm := &stubLLM{err: errors.New("throttled")}
	svc := newTestService(llm, stubTypes{types: []string{"Dentist"}}, stubSlots{})

	a := svc.Analyze(context.Background(), Input{Symptoms: "fever", Language: "sw"})
	if a.Urgency != UrgencyUrgent || a.Specialist != "General Practitioner" {
		t.Fatalf("unexpected fallback: %+v", a)
	}
	if !strings.Contains(a.Summary, "Tumeshindwa") {
		t.Fatalf("fallback summary not localized: %q", a.Summary)
	}
}

func TestAnalyzeFallsBackOnGarbage(t *testing.T) {
	llm := &stubLLM{text: "I think you should see a doctor soon."}
	svc := newTestService(llm, stubTypes{types: []string{"Dentist"}}, stubSlots{})

	a := svc.Analyze(context.Background(), Input{Symptoms: "fever", Language: "en"})
	if a.Urgency != UrgencyUrgent || a.Specialist != "General Practitioner" {
		t.Fatalf("unexpected fallback: %+v", a)
	}
}

func TestAnalyzeWithoutModel(t *testing.T) {
	svc := newTestService(nil, stubTypes{types: []string{"Dentist"}}, stubSlots{})
	a := svc.Analyze(context.Background(), Input{Symptoms: "fever", Language: "en"})
	if a.Urgency != UrgencyUrgent {
		t.Fatalf("expected fallback without model, got %+v", a)
	}
}

func TestSmartSlotsExcludesBooked(t *testing.T) {
	svc := newTestService(nil, stubTypes{}, stubSlots{booked: []string{"09:00:00", "14:00"}})

	slots := svc.SmartSlots(context.Background(), UrgencyRoutine, 7, "2026-09-15", "en")
	times := slotTimes(slots)
	want := []string{"10:00", "11:00", "13:00", "15:00"}
	if !equalStrings(times, want) {
		t.Fatalf("unexpected slots: %v", times)
	}
}

func TestSmartSlotsEmergencyTakesEarliestTwo(t *testing.T) {
	svc := newTestService(nil, stubTypes{}, stubSlots{booked: []string{"09:00"}})

	slots := svc.SmartSlots(context.Background(), UrgencyEmergency, 7, "2026-09-15", "en")
	times := slotTimes(slots)
	if !equalStrings(times, []string{"10:00", "11:00"}) {
		t.Fatalf("unexpected emergency slots: %v", times)
	}
}

func TestSmartSlotsUrgentPrefersMorning(t *testing.T) {
	svc := newTestService(nil, stubTypes{}, stubSlots{})

	slots := svc.SmartSlots(context.Background(), UrgencyUrgent, 7, "2026-09-15", "en")
	times := slotTimes(slots)
	if !equalStrings(times, []string{"09:00", "10:00", "13:00", "14:00"}) {
		t.Fatalf("unexpected urgent slots: %v", times)
	}
}

func TestSmartSlotsFallbackOnCalendarError(t *testing.T) {
	svc := newTestService(nil, stubTypes{}, stubSlots{err: errors.New("db down")})

	slots := svc.SmartSlots(context.Background(), UrgencyRoutine, 7, "2026-09-15", "sw")
	times := slotTimes(slots)
	if !equalStrings(times, []string{"09:00", "10:00", "13:00"}) {
		t.Fatalf("unexpected fallback slots: %v", times)
	}
	if slots[2].Label != "01:00 Mchana" {
		t.Fatalf("unexpected label: %q", slots[2].Label)
	}
}

func TestSlotLabel(t *testing.T) {
	tests := []struct {
		slot string
		lang string
		want string
	}{
		{"09:00", "en", "09:00 AM"},
		{"13:00", "en", "01:00 PM"},
		{"09:00", "sw", "09:00 Asubuhi"},
		{"15:00", "sw", "03:00 Mchana"},
	}
	for _, tt := range tests {
		if got := SlotLabel(tt.slot, tt.lang); got != tt.want {
			t.Fatalf("SlotLabel(%q, %q) = %q, want %q", tt.slot, tt.lang, got, tt.want)
		}
	}
}

func TestFollowUpMessage(t *testing.T) {
	f := FollowUp{PatientName: "Amina", DoctorName: "Dr. Achieng", Date: "2026-09-15", Time: "09:00 AM"}

	routine := FollowUpMessage(f, UrgencyRoutine, "en")
	if !strings.Contains(routine, "is confirmed") || strings.Contains(routine, "IMPORTANT") {
		t.Fatalf("unexpected routine message: %q", routine)
	}

	emergency := FollowUpMessage(f, UrgencyEmergency, "en")
	if !strings.Contains(emergency, "go to emergency room immediately") {
		t.Fatalf("missing emergency advice: %q", emergency)
	}

	urgentSw := FollowUpMessage(f, UrgencyUrgent, "sw")
	if !strings.Contains(urgentSw, "Hujambo Amina") || !strings.Contains(urgentSw, "usiache miadi hii") {
		t.Fatalf("unexpected Kiswahili message: %q", urgentSw)
	}
}

func slotTimes(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Time)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
