package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/afyabook/afyabook/internal/observability/metrics"
	"github.com/afyabook/afyabook/pkg/logging"
)

// Urgency levels, from most to least pressing.
const (
	UrgencyEmergency = "Emergency"
	UrgencyUrgent    = "Urgent"
	UrgencyRoutine   = "Routine"
	UrgencySelfCare  = "Self-care"
)

var validUrgencies = map[string]struct{}{
	UrgencyEmergency: {},
	UrgencyUrgent:    {},
	UrgencyRoutine:   {},
	UrgencySelfCare:  {},
}

// Input describes the patient context given to the model.
type Input struct {
	Symptoms string
	Language string
	Age      string
	Location string
}

// Assessment is the triage outcome. It is always usable: on any model or
// directory failure the service returns the fixed safe fallback instead of
// an error.
type Assessment struct {
	Urgency       string  `json:"urgency"`
	Specialist    string  `json:"specialist"`
	Summary       string  `json:"summary"`
	EmergencyFlag bool    `json:"emergency_flag"`
	Confidence    float64 `json:"confidence"`
}

// Slot is one offerable appointment time: the canonical 24-hour value that
// gets stored and compared, plus the localized label shown to the caller.
type Slot struct {
	Time  string
	Label string
}

// Working-day slot grid in 24-hour form; noon hour is kept free.
var baseSlots = []string{"09:00", "10:00", "11:00", "13:00", "14:00", "15:00"}

// Urgent cases are steered to morning and early-afternoon slots.
var urgentPreferred = map[string]struct{}{
	"09:00": {},
	"10:00": {},
	"13:00": {},
	"14:00": {},
}

var fallbackSlotTimes = []string{"09:00", "10:00", "13:00"}

// TypeSource lists the specialist types the recommendation must come from.
type TypeSource interface {
	Types(ctx context.Context) ([]string, error)
}

// SlotSource reports the slots already taken for a doctor on a date.
type SlotSource interface {
	BookedSlots(ctx context.Context, date string, doctorID int64) ([]string, error)
}

// Config carries the service knobs.
type Config struct {
	// Model is the provider model id passed through to the LLM client.
	Model string
	// DefaultSpecialist is recommended when the model fails or names a
	// specialist the directory does not have.
	DefaultSpecialist string
}

// Service performs symptom triage and slot ranking.
type Service struct {
	llm               LLMClient
	types             TypeSource
	slots             SlotSource
	logger            *logging.Logger
	metrics           *metrics.USSDMetrics
	model             string
	defaultSpecialist string
}

// NewService creates the triage service. A nil llm disables the model: every
// analysis returns the fallback assessment.
func NewService(llm LLMClient, types TypeSource, slots SlotSource, logger *logging.Logger, m *metrics.USSDMetrics, cfg Config) *Service {
	if types == nil {
		panic("triage: type source cannot be nil")
	}
	if slots == nil {
		panic("triage: slot source cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	defaultSpecialist := cfg.DefaultSpecialist
	if defaultSpecialist == "" {
		defaultSpecialist = "General Practitioner"
	}
	return &Service{
		llm:               llm,
		types:             types,
		slots:             slots,
		logger:            logger,
		metrics:           m,
		model:             cfg.Model,
		defaultSpecialist: defaultSpecialist,
	}
}

const systemPrompt = `You are a medical triage assistant for a USSD-based healthcare system in Kenya.

Your task is to analyze symptoms and provide:
1. Urgency level (Emergency, Urgent, Routine, Self-care)
2. Recommended specialist from available options
3. Brief explanation in the user's language
4. Warning flags if immediate medical attention is needed

CRITICAL SAFETY RULES:
- Always err on the side of caution
- For chest pain, difficulty breathing, severe bleeding, loss of consciousness, or stroke symptoms: classify as "Emergency"
- Never provide specific medical diagnosis
- Always recommend consulting healthcare professionals
- If unsure, escalate urgency level

Respond with JSON only:
{
  "urgency": "Emergency|Urgent|Routine|Self-care",
  "specialist": "recommended specialist from available list",
  "summary": "brief explanation in requested language",
  "emergency_flag": true or false,
  "confidence": 0.1-1.0
}`

// Analyze classifies the symptoms. It never returns an error: any failure
// along the way yields the safe Urgent/default-specialist fallback.
func (s *Service) Analyze(ctx context.Context, in Input) *Assessment {
	specialists, err := s.types.Types(ctx)
	if err != nil {
		s.logger.Warn("triage: specialist types unavailable", "error", err)
		specialists = nil
	}

	if s.llm == nil {
		s.metrics.ObserveTriage("fallback")
		return s.fallback(in.Language)
	}

	resp, err := s.llm.Complete(ctx, LLMRequest{
		Model: s.model,
		System: []string{
			systemPrompt,
			"Available specialists: " + strings.Join(specialists, ", "),
		},
		Messages: []ChatMessage{{
			Role:    ChatRoleUser,
			Content: s.userPrompt(in),
		}},
		MaxTokens:   500,
		Temperature: 0.3,
	})
	if err != nil {
		s.logger.Error("triage: model call failed", "error", err)
		s.metrics.ObserveTriage("fallback")
		return s.fallback(in.Language)
	}

	assessment, err := parseAssessment(resp.Text)
	if err != nil {
		s.logger.Error("triage: model response unparseable", "error", err)
		s.metrics.ObserveTriage("fallback")
		return s.fallback(in.Language)
	}

	if _, ok := validUrgencies[assessment.Urgency]; !ok {
		assessment.Urgency = UrgencyUrgent
	}
	if !containsSpecialist(specialists, assessment.Specialist) {
		if len(specialists) > 0 {
			assessment.Specialist = specialists[0]
		} else {
			assessment.Specialist = s.defaultSpecialist
		}
	}

	s.metrics.ObserveTriage("ok")
	return assessment
}

func (s *Service) userPrompt(in Input) string {
	age := in.Age
	if age == "" {
		age = "Not provided"
	}
	location := in.Location
	if location == "" {
		location = "Kenya"
	}
	language := "English"
	if in.Language == "sw" {
		language = "Kiswahili"
	}
	return fmt.Sprintf(`Analyze these symptoms:
Symptoms: %q
Patient age: %s
Location: %s

Provide analysis in %s.`, in.Symptoms, age, location, language)
}

func (s *Service) fallback(lang string) *Assessment {
	summary := "Unable to analyze symptoms. Please consult a doctor."
	if lang == "sw" {
		summary = "Tumeshindwa kuchambua dalili zako. Tafadhali tembelea daktari."
	}
	return &Assessment{
		Urgency:       UrgencyUrgent,
		Specialist:    s.defaultSpecialist,
		Summary:       summary,
		EmergencyFlag: false,
		Confidence:    0.1,
	}
}

// parseAssessment decodes the model's JSON, tolerating markdown code fences
// around the object.
func parseAssessment(text string) (*Assessment, error) {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("triage: no JSON object in response %q", text)
	}

	var assessment Assessment
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &assessment); err != nil {
		return nil, fmt.Errorf("triage: decode assessment: %w", err)
	}
	return &assessment, nil
}

func containsSpecialist(specialists []string, candidate string) bool {
	for _, sp := range specialists {
		if strings.EqualFold(sp, candidate) {
			return true
		}
	}
	return false
}

// SmartSlots returns the offerable slots for the doctor on the date, ordered
// and filtered by urgency: Emergency gets the two earliest free slots, Urgent
// gets morning and early-afternoon slots, everything else gets all free
// slots. A calendar read failure degrades to a short fixed list.
func (s *Service) SmartSlots(ctx context.Context, urgency string, doctorID int64, date, lang string) []Slot {
	booked, err := s.slots.BookedSlots(ctx, date, doctorID)
	if err != nil {
		s.logger.Warn("triage: booked slots unavailable", "doctor_id", doctorID, "date", date, "error", err)
		s.metrics.ObserveSlotFallback()
		return localizeSlots(fallbackSlotTimes, lang)
	}

	available := make([]string, 0, len(baseSlots))
	for _, slot := range baseSlots {
		if slotTaken(booked, slot) {
			continue
		}
		available = append(available, slot)
	}

	var prioritized []string
	switch urgency {
	case UrgencyEmergency:
		if len(available) > 2 {
			prioritized = available[:2]
		} else {
			prioritized = available
		}
	case UrgencyUrgent:
		for _, slot := range available {
			if _, ok := urgentPreferred[slot]; ok {
				prioritized = append(prioritized, slot)
			}
		}
		if len(prioritized) == 0 {
			prioritized = available
		}
	default:
		prioritized = available
	}

	return localizeSlots(prioritized, lang)
}

// slotTaken compares against booked values in either "HH:MM" or "HH:MM:SS"
// form.
func slotTaken(booked []string, slot string) bool {
	for _, b := range booked {
		if b == slot || strings.HasPrefix(b, slot+":") {
			return true
		}
	}
	return false
}

func localizeSlots(times []string, lang string) []Slot {
	slots := make([]Slot, 0, len(times))
	for _, t := range times {
		slots = append(slots, Slot{Time: t, Label: SlotLabel(t, lang)})
	}
	return slots
}

// SlotLabel renders a 24-hour "HH:MM" slot as the caller-facing label:
// "09:00 AM" / "02:00 PM" in English, "09:00 Asubuhi" / "02:00 Mchana" in
// Kiswahili.
func SlotLabel(slot, lang string) string {
	hour, err := strconv.Atoi(strings.SplitN(slot, ":", 2)[0])
	if err != nil {
		return slot
	}
	period := "AM"
	if lang == "sw" {
		period = "Asubuhi"
	}
	if hour >= 12 {
		period = "PM"
		if lang == "sw" {
			period = "Mchana"
		}
	}
	displayHour := hour
	if hour > 12 {
		displayHour = hour - 12
	}
	return fmt.Sprintf("%02d:00 %s", displayHour, period)
}

// FollowUp holds the confirmed appointment facts the SMS mentions.
type FollowUp struct {
	PatientName string
	DoctorName  string
	Date        string
	Time        string
}

// FollowUpMessage builds the confirmation SMS body, appending urgency advice
// for Emergency and Urgent cases.
func FollowUpMessage(f FollowUp, urgency, lang string) string {
	var base string
	if lang == "sw" {
		base = fmt.Sprintf("Hujambo %s, miadi yako na %s tarehe %s saa %s imepangwa.", f.PatientName, f.DoctorName, f.Date, f.Time)
	} else {
		base = fmt.Sprintf("Hello %s, your appointment with %s on %s at %s is confirmed.", f.PatientName, f.DoctorName, f.Date, f.Time)
	}

	switch urgency {
	case UrgencyEmergency:
		if lang == "sw" {
			return base + " MUHIMU: Hii ni hali ya haraka. Ikiwa dalili zitaongezeka, nenda hospitali mara moja."
		}
		return base + " IMPORTANT: This is urgent. If symptoms worsen, go to emergency room immediately."
	case UrgencyUrgent:
		if lang == "sw" {
			return base + " Tafadhali usiache miadi hii. Wasiliana na daktari ikiwa dalili zitabadilika."
		}
		return base + " Please do not miss this appointment. Contact doctor if symptoms change."
	}
	return base
}
