package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTextLocalization(t *testing.T) {
	assert.Equal(t, msgEnterName.en, msgEnterName.in(LangEnglish))
	assert.Equal(t, msgEnterName.sw, msgEnterName.in(LangSwahili))
	// Unknown codes fall back to English.
	assert.Equal(t, msgEnterName.en, msgEnterName.in("fr"))
}

func TestConfirmSummaryShowsKind(t *testing.T) {
	physical := confirmSummary(LangEnglish, "Dr. Achieng", "2099-01-01", "09:00 AM", kindPhysical)
	assert.Contains(t, physical, "Type: Physical")
	assert.Contains(t, physical, "Dr. Achieng")
	assert.Contains(t, physical, "2. Change time")

	remote := confirmSummary(LangSwahili, "Dr. Achieng", "2099-01-01", "09:00 Asubuhi", kindRemote)
	assert.Contains(t, remote, "Mbali (Video)")
	assert.Contains(t, remote, "1. Thibitisha")
}

func TestTriageMenuNamesSpecialistTwice(t *testing.T) {
	menu := triageMenu(LangEnglish, "Likely flu.", "General Practitioner")
	assert.Contains(t, menu, "Recommended specialist: General Practitioner")
	assert.Contains(t, menu, "1. Book with General Practitioner")
}

func TestNoDoctorsPromptOffersEscapes(t *testing.T) {
	prompt := noDoctorsPrompt(LangEnglish, "Dentist", "Kisumu")
	assert.Contains(t, prompt, "0. Change Location")
	assert.Contains(t, prompt, "100. Exit")

	sw := noDoctorsPrompt(LangSwahili, "Dentist", "Kisumu")
	assert.Contains(t, sw, "0. Badilisha Eneo")
}
