// Package dialog defines the appointment-booking conversation: onboarding and
// registration, AI symptom check, specialist browsing, doctor and slot
// selection, confirmation and exit. The graph is registered once at startup
// and interpreted by the ussd engine one turn at a time.
package dialog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/afyabook/afyabook/internal/booking"
	"github.com/afyabook/afyabook/internal/directory"
	"github.com/afyabook/afyabook/internal/triage"
	"github.com/afyabook/afyabook/internal/ussd"
	"github.com/afyabook/afyabook/pkg/logging"
)

// Session field keys.
const (
	keyLang            = "lang"
	keyName            = "name"
	keyAge             = "age"
	keyPhone           = "phone"
	keyLocation        = "location"
	keyFlow            = "flow"
	keyKind            = "kind"
	keySpecialist      = "specialist"
	keySpecialistTypes = "specialist_types"
	keySpecialistCount = "specialist_count"
	keyDoctors         = "doctors"
	keyDoctorCount     = "doctor_count"
	keyDoctor          = "doctor"
	keyDoctorID        = "doctor_id"
	keyDate            = "date"
	keySlotTimes       = "slot_times"
	keySlotLabels      = "slot_labels"
	keySlotCount       = "slot_count"
	keySlot            = "slot"
	keySlotLabel       = "slot_label"
	keyUrgency         = "urgency"
	keyTriageType      = "triage_specialist"
)

const (
	flowDetails = "details"
	flowBooking = "booking"

	kindPhysical = "physical"
	kindRemote   = "remote"
)

// Input patterns, in the engine's "*"-prefixed regex convention.
const (
	patternLetters = `*[a-zA-Z]+`
	patternAge     = `*^[1-9]$|^[1-9][0-9]$|^(100)$`
	patternPhone   = `*^(\+254|0)7\d{8}$`
)

var dateFormat = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

const defaultMinSymptomLength = 10

// Directory lists specialists and doctors.
type Directory interface {
	Types(ctx context.Context) ([]string, error)
	NamesByTypeLocation(ctx context.Context, specialistType, location string) ([]string, error)
	Details(ctx context.Context, name string) (*directory.Details, error)
	IDByName(ctx context.Context, name string) (int64, error)
}

// Bookings persists patients and appointments.
type Bookings interface {
	FindUserByPhone(ctx context.Context, phone string) (*booking.User, error)
	InsertUser(ctx context.Context, name, age, phone, location string) (*booking.User, error)
	RecordAppointment(ctx context.Context, userID, doctorID int64, date, slot string) (*booking.Appointment, error)
	RecordTeleappointment(ctx context.Context, userID, doctorID int64, date, slot string) (*booking.Appointment, error)
}

// Triage classifies symptoms and ranks slots. Both calls are failure-proof:
// they degrade internally instead of returning errors.
type Triage interface {
	Analyze(ctx context.Context, in triage.Input) *triage.Assessment
	SmartSlots(ctx context.Context, urgency string, doctorID int64, date, lang string) []triage.Slot
}

// Notifier delivers the confirmation SMS, best-effort.
type Notifier interface {
	SendConfirmation(ctx context.Context, phone, message string)
}

// Config wires the dialog's collaborators.
type Config struct {
	Directory Directory
	Bookings  Bookings
	Triage    Triage
	Notifier  Notifier
	Logger    *logging.Logger
	// MinSymptomLength rejects symptom descriptions shorter than this many
	// characters; zero means the default.
	MinSymptomLength int
	// Now is the clock used for date validation and the farewell greeting;
	// nil means time.Now.
	Now func() time.Time
}

type dialog struct {
	dir    Directory
	book   Bookings
	triage Triage
	notify Notifier
	logger *logging.Logger
	minLen int
	now    func() time.Time
}

// SystemErrorMessage localizes the engine's terminal error message from the
// session's chosen language; pass it to ussd.WithErrorMessage.
func SystemErrorMessage(ctx context.Context, req *ussd.Request) string {
	lang, _, _ := req.Session().Get(ctx, keyLang)
	return msgSystemError.in(lang)
}

// Register builds the full state graph on the engine.
func Register(e *ussd.Engine, cfg Config) error {
	if cfg.Directory == nil {
		panic("dialog: directory cannot be nil")
	}
	if cfg.Bookings == nil {
		panic("dialog: bookings cannot be nil")
	}
	if cfg.Triage == nil {
		panic("dialog: triage cannot be nil")
	}
	if cfg.Notifier == nil {
		panic("dialog: notifier cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	minLen := cfg.MinSymptomLength
	if minLen <= 0 {
		minLen = defaultMinSymptomLength
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	d := &dialog{
		dir:    cfg.Directory,
		book:   cfg.Bookings,
		triage: cfg.Triage,
		notify: cfg.Notifier,
		logger: logger,
		minLen: minLen,
		now:    now,
	}
	return d.register(e)
}

func (d *dialog) register(e *ussd.Engine) error {
	steps := []func(*ussd.Engine) error{
		d.registerOnboarding,
		d.registerTriage,
		d.registerSpecialists,
		d.registerDoctors,
		d.registerAppointment,
		d.registerExit,
	}
	for _, step := range steps {
		if err := step(e); err != nil {
			return err
		}
	}
	return nil
}

func (d *dialog) registerOnboarding(e *ussd.Engine) error {
	if err := e.StartState(ussd.StateConfig{
		Run: func(_ context.Context, req *ussd.Request) error {
			req.Con(msgWelcome.en)
			return nil
		},
		Next: []ussd.Transition{
			{Pattern: "0", To: "exit"},
			{Pattern: "1", To: "register.name"},
			{Pattern: "2", To: "register.name"},
		},
		Invalid: func(_ context.Context, req *ussd.Request) error {
			req.Con(msgWelcome.en)
			return nil
		},
	}); err != nil {
		return err
	}

	if err := e.State("register.name", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			lang := LangEnglish
			if req.Input() == "2" {
				lang = LangSwahili
			}
			if err := req.Session().Set(ctx, keyLang, lang); err != nil {
				return err
			}
			req.Con(msgEnterName.in(lang))
			return nil
		},
		Next: []ussd.Transition{
			{Pattern: patternLetters, To: "register.age"},
		},
		Invalid: d.reprompt(msgInvalidName),
	}); err != nil {
		return err
	}

	if err := e.State("register.age", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			if err := req.Session().Set(ctx, keyName, req.Input()); err != nil {
				return err
			}
			req.Con(msgEnterAge.in(d.lang(ctx, req)))
			return nil
		},
		Next: []ussd.Transition{
			{Pattern: patternAge, To: "register.phone"},
		},
		Invalid: d.reprompt(msgInvalidAge),
	}); err != nil {
		return err
	}

	if err := e.State("register.phone", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			if err := req.Session().Set(ctx, keyAge, req.Input()); err != nil {
				return err
			}
			req.Con(msgEnterPhone.in(d.lang(ctx, req)))
			return nil
		},
		Next: []ussd.Transition{
			{Pattern: patternPhone, To: "register.location"},
		},
		Invalid: d.reprompt(msgInvalidPhone),
	}); err != nil {
		return err
	}

	if err := e.State("register.location", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			if err := req.Session().Set(ctx, keyPhone, req.Input()); err != nil {
				return err
			}
			req.Con(msgEnterLocation.in(d.lang(ctx, req)))
			return nil
		},
		Next: []ussd.Transition{
			{Pattern: patternLetters, To: "service.menu"},
		},
		Invalid: d.reprompt(msgInvalidLocation),
	}); err != nil {
		return err
	}

	if err := e.State("service.menu", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			if err := req.Session().Set(ctx, keyLocation, capitalize(req.Input())); err != nil {
				return err
			}
			req.Con(msgServiceMenu.in(d.lang(ctx, req)))
			return nil
		},
		Next: []ussd.Transition{
			{Pattern: "1", To: "triage.symptoms"},
			{Pattern: "2", To: "service.details"},
			{Pattern: "3", To: "service.booking"},
		},
		Invalid: d.reprompt(msgInvalidChoice),
	}); err != nil {
		return err
	}

	if err := e.State("service.details", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			if err := req.Session().Set(ctx, keyFlow, flowDetails); err != nil {
				return err
			}
			req.Go("specialist.menu")
			return nil
		},
	}); err != nil {
		return err
	}

	return e.State("service.booking", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			if err := req.Session().Set(ctx, keyFlow, flowBooking); err != nil {
				return err
			}
			req.Go("appointment.type")
			return nil
		},
	})
}

func (d *dialog) registerTriage(e *ussd.Engine) error {
	if err := e.State("triage.symptoms", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			req.Con(msgEnterSymptoms.in(d.lang(ctx, req)))
			return nil
		},
		Next: []ussd.Transition{
			{When: d.symptomsLongEnough, To: "triage.assess"},
		},
		Invalid: d.reprompt(msgSymptomsTooShort),
	}); err != nil {
		return err
	}

	if err := e.State("triage.assess", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			lang := d.lang(ctx, req)
			age, _, _ := req.Session().Get(ctx, keyAge)
			location, _, _ := req.Session().Get(ctx, keyLocation)

			assessment := d.triage.Analyze(ctx, triage.Input{
				Symptoms: req.Input(),
				Language: lang,
				Age:      age,
				Location: location,
			})
			if err := req.Session().Set(ctx, keyUrgency, assessment.Urgency); err != nil {
				return err
			}
			if err := req.Session().Set(ctx, keyTriageType, assessment.Specialist); err != nil {
				return err
			}
			req.Con(triageMenu(lang, assessment.Summary, assessment.Specialist))
			return nil
		},
		Next: []ussd.Transition{
			{Pattern: "1", To: "triage.book.recommended"},
			{Pattern: "2", To: "triage.book.other"},
			{Pattern: "3", To: "triage.details"},
			{Pattern: "0", To: "exit"},
		},
		Invalid: d.reprompt(msgInvalidChoice),
	}); err != nil {
		return err
	}

	if err := e.State("triage.book.recommended", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			recommended, _, _ := req.Session().Get(ctx, keyTriageType)
			if err := req.Session().Set(ctx, keySpecialist, recommended); err != nil {
				return err
			}
			if err := req.Session().Set(ctx, keyFlow, flowBooking); err != nil {
				return err
			}
			req.Go("appointment.type")
			return nil
		},
	}); err != nil {
		return err
	}

	if err := e.State("triage.book.other", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			if err := req.Session().Set(ctx, keySpecialist, ""); err != nil {
				return err
			}
			if err := req.Session().Set(ctx, keyFlow, flowBooking); err != nil {
				return err
			}
			req.Go("appointment.type")
			return nil
		},
	}); err != nil {
		return err
	}

	return e.State("triage.details", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			recommended, _, _ := req.Session().Get(ctx, keyTriageType)
			if err := req.Session().Set(ctx, keySpecialist, recommended); err != nil {
				return err
			}
			if err := req.Session().Set(ctx, keyFlow, flowDetails); err != nil {
				return err
			}
			req.Go("doctor.menu")
			return nil
		},
	})
}

func (d *dialog) registerSpecialists(e *ussd.Engine) error {
	if err := e.State("specialist.menu", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			lang := d.lang(ctx, req)
			types, err := d.dir.Types(ctx)
			if err != nil {
				d.logger.Warn("specialist types unavailable", "error", err)
				types = nil
			}
			if len(types) == 0 {
				req.End(msgNoSpecialists.in(lang))
				return nil
			}
			if err := req.Session().SetStrings(ctx, keySpecialistTypes, types); err != nil {
				return err
			}
			if err := req.Session().Set(ctx, keySpecialistCount, strconv.Itoa(len(types))); err != nil {
				return err
			}
			req.Con(msgSelectSpecialist.in(lang) + "\n" + numbered(types))
			return nil
		},
		Next: []ussd.Transition{
			{When: indexWithin(keySpecialistCount), To: "specialist.pick"},
		},
		Invalid: d.reprompt(msgInvalidChoice),
	}); err != nil {
		return err
	}

	return e.State("specialist.pick", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			types, err := req.Session().GetStrings(ctx, keySpecialistTypes)
			if err != nil {
				return err
			}
			idx, err := strconv.Atoi(req.Input())
			if err != nil || idx < 1 || idx > len(types) {
				return fmt.Errorf("dialog: specialist index %q out of range", req.Input())
			}
			if err := req.Session().Set(ctx, keySpecialist, types[idx-1]); err != nil {
				return err
			}
			req.Go("doctor.menu")
			return nil
		},
	})
}

func (d *dialog) registerDoctors(e *ussd.Engine) error {
	if err := e.State("doctor.menu", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			lang := d.lang(ctx, req)
			specialist, _, _ := req.Session().Get(ctx, keySpecialist)
			location, _, _ := req.Session().Get(ctx, keyLocation)

			names, err := d.dir.NamesByTypeLocation(ctx, specialist, location)
			if err != nil {
				d.logger.Warn("doctor lookup failed", "specialist", specialist, "location", location, "error", err)
				names = nil
			}
			if len(names) == 0 {
				if err := req.Session().Set(ctx, keyDoctorCount, "0"); err != nil {
					return err
				}
				req.Con(noDoctorsPrompt(lang, specialist, location))
				return nil
			}
			if err := req.Session().SetStrings(ctx, keyDoctors, names); err != nil {
				return err
			}
			if err := req.Session().Set(ctx, keyDoctorCount, strconv.Itoa(len(names))); err != nil {
				return err
			}
			req.Con(selectDoctorPrompt(lang, specialist, location) + "\n" + numbered(names))
			return nil
		},
		Next: []ussd.Transition{
			{Pattern: "0", To: "location.change"},
			{Pattern: "100", To: "exit"},
			{When: indexWithin(keyDoctorCount), To: "doctor.pick"},
		},
		Invalid: d.reprompt(msgInvalidChoice),
	}); err != nil {
		return err
	}

	if err := e.State("doctor.pick", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			names, err := req.Session().GetStrings(ctx, keyDoctors)
			if err != nil {
				return err
			}
			idx, err := strconv.Atoi(req.Input())
			if err != nil || idx < 1 || idx > len(names) {
				return fmt.Errorf("dialog: doctor index %q out of range", req.Input())
			}
			if err := req.Session().Set(ctx, keyDoctor, names[idx-1]); err != nil {
				return err
			}
			flow, _, _ := req.Session().Get(ctx, keyFlow)
			if flow == flowDetails {
				req.Go("doctor.details")
				return nil
			}
			req.Go("appointment.date")
			return nil
		},
	}); err != nil {
		return err
	}

	if err := e.State("doctor.details", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			lang := d.lang(ctx, req)
			name, _, _ := req.Session().Get(ctx, keyDoctor)
			details, err := d.dir.Details(ctx, name)
			if err != nil {
				d.logger.Error("doctor details failed", "doctor", name, "error", err)
				req.End(msgDetailsFailed.in(lang))
				return nil
			}
			req.End(doctorCard(lang, details.Name, details.Contact, details.Location, details.Email, details.Address))
			return nil
		},
	}); err != nil {
		return err
	}

	if err := e.State("location.change", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			req.Con(msgEnterNewLocation.in(d.lang(ctx, req)))
			return nil
		},
		Next: []ussd.Transition{
			{Pattern: patternLetters, To: "location.apply"},
		},
		Invalid: d.reprompt(msgInvalidLocation),
	}); err != nil {
		return err
	}

	return e.State("location.apply", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			if err := req.Session().Set(ctx, keyLocation, capitalize(req.Input())); err != nil {
				return err
			}
			req.Go("doctor.menu")
			return nil
		},
	})
}

func (d *dialog) registerAppointment(e *ussd.Engine) error {
	if err := e.State("appointment.type", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			req.Con(msgAppointmentType.in(d.lang(ctx, req)))
			return nil
		},
		Next: []ussd.Transition{
			{Pattern: "1", To: "appointment.kind"},
			{Pattern: "2", To: "appointment.kind"},
		},
		Invalid: d.reprompt(msgInvalidChoice),
	}); err != nil {
		return err
	}

	if err := e.State("appointment.kind", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			kind := kindPhysical
			if req.Input() == "2" {
				kind = kindRemote
			}
			if err := req.Session().Set(ctx, keyKind, kind); err != nil {
				return err
			}
			specialist, _, _ := req.Session().Get(ctx, keySpecialist)
			if specialist != "" {
				req.Go("doctor.menu")
				return nil
			}
			req.Go("specialist.menu")
			return nil
		},
	}); err != nil {
		return err
	}

	if err := e.State("appointment.date", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			req.Con(msgEnterDate.in(d.lang(ctx, req)))
			return nil
		},
		Next: []ussd.Transition{
			{When: d.dateAcceptable, To: "appointment.slots"},
		},
		Invalid: func(ctx context.Context, req *ussd.Request) error {
			lang := d.lang(ctx, req)
			if dateFormat.MatchString(req.Input()) {
				req.Con(msgDateInPast.in(lang))
				return nil
			}
			req.Con(msgInvalidDateFormat.in(lang))
			return nil
		},
	}); err != nil {
		return err
	}

	if err := e.State("appointment.slots", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			lang := d.lang(ctx, req)
			// Entered either with a fresh date or via "change time" with the
			// date already in the session.
			if d.validDate(req.Input()) {
				if err := req.Session().Set(ctx, keyDate, req.Input()); err != nil {
					return err
				}
			}
			date, _, _ := req.Session().Get(ctx, keyDate)
			name, _, _ := req.Session().Get(ctx, keyDoctor)

			doctorID, err := d.dir.IDByName(ctx, name)
			if err != nil {
				d.logger.Error("doctor id lookup failed", "doctor", name, "error", err)
				req.End(msgBookingFailed.in(lang))
				return nil
			}
			if err := req.Session().Set(ctx, keyDoctorID, strconv.FormatInt(doctorID, 10)); err != nil {
				return err
			}

			urgency, _, _ := req.Session().Get(ctx, keyUrgency)
			slots := d.triage.SmartSlots(ctx, urgency, doctorID, date, lang)
			if len(slots) == 0 {
				if err := req.Session().Set(ctx, keySlotCount, "0"); err != nil {
					return err
				}
				req.Con(msgNoSlots.in(lang))
				return nil
			}

			times := make([]string, 0, len(slots))
			labels := make([]string, 0, len(slots))
			for _, slot := range slots {
				times = append(times, slot.Time)
				labels = append(labels, slot.Label)
			}
			if err := req.Session().SetStrings(ctx, keySlotTimes, times); err != nil {
				return err
			}
			if err := req.Session().SetStrings(ctx, keySlotLabels, labels); err != nil {
				return err
			}
			if err := req.Session().Set(ctx, keySlotCount, strconv.Itoa(len(slots))); err != nil {
				return err
			}
			req.Con(msgSelectSlot.in(lang) + "\n" + numbered(labels))
			return nil
		},
		Next: []ussd.Transition{
			// A new date re-lists slots; only then try the ordinal selection.
			{When: d.dateAcceptable, To: "appointment.slots"},
			{When: indexWithin(keySlotCount), To: "appointment.confirm"},
		},
		Invalid: func(ctx context.Context, req *ussd.Request) error {
			lang := d.lang(ctx, req)
			count, _, _ := req.Session().Get(ctx, keySlotCount)
			if count == "0" {
				if dateFormat.MatchString(req.Input()) {
					req.Con(msgDateInPast.in(lang))
					return nil
				}
				req.Con(msgInvalidDateFormat.in(lang))
				return nil
			}
			req.Con(msgInvalidSlot.in(lang))
			return nil
		},
	}); err != nil {
		return err
	}

	if err := e.State("appointment.confirm", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			lang := d.lang(ctx, req)
			times, err := req.Session().GetStrings(ctx, keySlotTimes)
			if err != nil {
				return err
			}
			labels, err := req.Session().GetStrings(ctx, keySlotLabels)
			if err != nil {
				return err
			}
			idx, err := strconv.Atoi(req.Input())
			if err != nil || idx < 1 || idx > len(times) || idx > len(labels) {
				return fmt.Errorf("dialog: slot index %q out of range", req.Input())
			}
			if err := req.Session().Set(ctx, keySlot, times[idx-1]); err != nil {
				return err
			}
			if err := req.Session().Set(ctx, keySlotLabel, labels[idx-1]); err != nil {
				return err
			}

			doctor, _, _ := req.Session().Get(ctx, keyDoctor)
			date, _, _ := req.Session().Get(ctx, keyDate)
			kind, _, _ := req.Session().Get(ctx, keyKind)
			req.Con(confirmSummary(lang, doctor, date, labels[idx-1], kind))
			return nil
		},
		Next: []ussd.Transition{
			{Pattern: "1", To: "appointment.create"},
			{Pattern: "2", To: "appointment.slots"},
			{Pattern: "0", To: "exit"},
		},
		Invalid: d.reprompt(msgInvalidChoice),
	}); err != nil {
		return err
	}

	return e.State("appointment.create", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			lang := d.lang(ctx, req)
			name, _, _ := req.Session().Get(ctx, keyName)
			age, _, _ := req.Session().Get(ctx, keyAge)
			phone, _, _ := req.Session().Get(ctx, keyPhone)
			location, _, _ := req.Session().Get(ctx, keyLocation)
			doctor, _, _ := req.Session().Get(ctx, keyDoctor)
			date, _, _ := req.Session().Get(ctx, keyDate)
			slot, _, _ := req.Session().Get(ctx, keySlot)
			slotLabel, _, _ := req.Session().Get(ctx, keySlotLabel)
			kind, _, _ := req.Session().Get(ctx, keyKind)
			urgency, _, _ := req.Session().Get(ctx, keyUrgency)
			doctorIDRaw, _, _ := req.Session().Get(ctx, keyDoctorID)

			doctorID, err := strconv.ParseInt(doctorIDRaw, 10, 64)
			if err != nil {
				d.logger.Error("session carries no doctor id", "session_id", req.SessionID())
				req.End(msgBookingFailed.in(lang))
				return nil
			}

			user, err := d.book.FindUserByPhone(ctx, phone)
			if errors.Is(err, booking.ErrUserNotFound) {
				user, err = d.book.InsertUser(ctx, name, age, phone, location)
			}
			if err != nil {
				d.logger.Error("patient lookup failed", "phone", phone, "error", err)
				req.End(msgBookingFailed.in(lang))
				return nil
			}

			if kind == kindRemote {
				_, err = d.book.RecordTeleappointment(ctx, user.ID, doctorID, date, slot)
			} else {
				_, err = d.book.RecordAppointment(ctx, user.ID, doctorID, date, slot)
			}
			if err != nil {
				d.logger.Error("appointment write failed", "doctor_id", doctorID, "date", date, "error", err)
				req.End(msgBookingFailed.in(lang))
				return nil
			}

			d.notify.SendConfirmation(ctx, phone, triage.FollowUpMessage(triage.FollowUp{
				PatientName: name,
				DoctorName:  doctor,
				Date:        date,
				Time:        slotLabel,
			}, urgency, lang))

			final := msgBookingDone.in(lang)
			if urgency != "" {
				final += priorityNote(lang, urgency)
			}
			req.End(final)
			return nil
		},
	})
}

func (d *dialog) registerExit(e *ussd.Engine) error {
	return e.State("exit", ussd.StateConfig{
		Run: func(ctx context.Context, req *ussd.Request) error {
			req.End(farewell(d.lang(ctx, req), d.now().Hour()))
			return nil
		},
	})
}

// lang reads the session language, defaulting to English before the caller
// has chosen.
func (d *dialog) lang(ctx context.Context, req *ussd.Request) string {
	lang, ok, err := req.Session().Get(ctx, keyLang)
	if err != nil || !ok {
		return LangEnglish
	}
	return lang
}

// reprompt builds an Invalid handler that repeats a localized validation
// message without advancing state.
func (d *dialog) reprompt(t text) ussd.HandlerFunc {
	return func(ctx context.Context, req *ussd.Request) error {
		req.Con(t.in(d.lang(ctx, req)))
		return nil
	}
}

func (d *dialog) symptomsLongEnough(_ context.Context, req *ussd.Request) (bool, error) {
	return len(strings.TrimSpace(req.Input())) >= d.minLen, nil
}

// dateAcceptable passes inputs shaped YYYY-MM-DD that are today or later.
func (d *dialog) dateAcceptable(_ context.Context, req *ussd.Request) (bool, error) {
	return d.validDate(req.Input()), nil
}

func (d *dialog) validDate(input string) bool {
	if !dateFormat.MatchString(input) {
		return false
	}
	parsed, err := time.Parse("2006-01-02", input)
	if err != nil {
		return false
	}
	now := d.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !parsed.Before(today)
}

// indexWithin builds a predicate accepting a numeric input between 1 and the
// count stored under the given session key. Lists rendered by one turn are
// validated against that same session's count on the next, so concurrent
// callers never see each other's ranges.
func indexWithin(countKey string) ussd.Predicate {
	return func(ctx context.Context, req *ussd.Request) (bool, error) {
		n, err := strconv.Atoi(req.Input())
		if err != nil {
			return false, nil
		}
		raw, ok, err := req.Session().Get(ctx, countKey)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		count, err := strconv.Atoi(raw)
		if err != nil {
			return false, nil
		}
		return n >= 1 && n <= count, nil
	}
}

func numbered(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, item)
	}
	return b.String()
}

// capitalize lowercases the input and uppercases the first rune, so "naIROBI"
// is stored as "Nairobi".
func capitalize(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	runes := []rune(lower)
	if len(runes) == 0 {
		return lower
	}
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
