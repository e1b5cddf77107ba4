package dialog

import "fmt"

// Language codes stored in the session.
const (
	LangEnglish = "en"
	LangSwahili = "sw"
)

// text is one caller-facing message in both languages. The two variants are
// always indexed identically so numbered selections work regardless of
// display language.
type text struct {
	en string
	sw string
}

func (t text) in(lang string) string {
	if lang == LangSwahili {
		return t.sw
	}
	return t.en
}

var (
	msgWelcome = text{
		en: "Welcome/ Karibu:\n1. English\n2. Kiswahili\n0. Exit / Ondoka",
		sw: "Welcome/ Karibu:\n1. English\n2. Kiswahili\n0. Exit / Ondoka",
	}
	msgEnterName = text{
		en: "Enter your Name:",
		sw: "Weka Jina Lako:",
	}
	msgInvalidName = text{
		en: "Invalid name. Enter your Name (letters only):",
		sw: "Jina si sahihi. Weka Jina Lako (herufi pekee):",
	}
	msgEnterAge = text{
		en: "Enter your Age:",
		sw: "Weka Umri Wako:",
	}
	msgInvalidAge = text{
		en: "Invalid age. Enter your Age (1-100):",
		sw: "Umri si sahihi. Weka Umri Wako (1-100):",
	}
	msgEnterPhone = text{
		en: "Enter your Phone number (0722 XXX XXX):",
		sw: "Weka Nambari Yako ya Simu (0722 XXX XXX):",
	}
	msgInvalidPhone = text{
		en: "Invalid phone number. Enter your Phone number (0722 XXX XXX):",
		sw: "Nambari ya simu si sahihi. Weka Nambari Yako ya Simu (0722 XXX XXX):",
	}
	msgEnterLocation = text{
		en: "Enter your Location/Town (e.g Nairobi):",
		sw: "Weka Mahali Ulipo/Mji (mfano Nairobi):",
	}
	msgInvalidLocation = text{
		en: "Invalid location. Enter your Location/Town (e.g Nairobi):",
		sw: "Mahali si sahihi. Weka Mahali Ulipo/Mji (mfano Nairobi):",
	}
	msgEnterNewLocation = text{
		en: "Enter New Location/Town (e.g Nairobi):",
		sw: "Ingiza Eneo/Mji Mpya (mfano: Nairobi):",
	}
	msgServiceMenu = text{
		en: "Choose preferred Service:\n1. Symptom Check (AI).\n2. Specialist Details.\n3. Book an Appointment.",
		sw: "Chagua Huduma Unayopendelea:\n1. Ukaguzi wa Dalili (AI).\n2. Maelezo ya Mtaalamu.\n3. Panga Miadi.",
	}
	msgInvalidChoice = text{
		en: "Invalid choice. Please select one of the listed options:",
		sw: "Chaguo si sahihi. Tafadhali chagua mojawapo ya chaguo zilizoorodheshwa:",
	}
	msgEnterSymptoms = text{
		en: "Describe your symptoms in a few words:",
		sw: "Eleza dalili zako kwa maneno machache:",
	}
	msgSymptomsTooShort = text{
		en: "Please give more detail. Describe your symptoms in a few words:",
		sw: "Tafadhali toa maelezo zaidi. Eleza dalili zako kwa maneno machache:",
	}
	msgAppointmentType = text{
		en: "Please enter the Appointment type:\n1. Physical appointment\n2. Remote (Video) appointment",
		sw: "Tafadhali ingiza aina ya miadi:\n1. Miadi ya ana kwa ana\n2. Miadi ya mbali (Miadi ya video)",
	}
	msgSelectSpecialist = text{
		en: "Select specialist you need:",
		sw: "Chagua mtaalamu unayehitaji:",
	}
	msgNoSpecialists = text{
		en: "No specialists are available right now. Please try again later.",
		sw: "Hakuna wataalamu wanaopatikana kwa sasa. Tafadhali jaribu tena baadaye.",
	}
	msgEnterDate = text{
		en: "Please enter the Date for the appointment (YYYY-MM-DD):",
		sw: "Tafadhali ingiza Tarehe ya miadi (YYYY-MM-DD):",
	}
	msgInvalidDateFormat = text{
		en: "Invalid date. Use the format YYYY-MM-DD:",
		sw: "Tarehe si sahihi. Tumia muundo YYYY-MM-DD:",
	}
	msgDateInPast = text{
		en: "The date cannot be in the past. Enter the Date (YYYY-MM-DD):",
		sw: "Tarehe haiwezi kuwa imepita. Ingiza Tarehe (YYYY-MM-DD):",
	}
	msgSelectSlot = text{
		en: "Please select an Appointment time slot:",
		sw: "Tafadhali chagua nafasi ya muda wa miadi:",
	}
	msgNoSlots = text{
		en: "No free time slots on that day. Enter another Date (YYYY-MM-DD):",
		sw: "Hakuna nafasi za muda siku hiyo. Ingiza Tarehe nyingine (YYYY-MM-DD):",
	}
	msgInvalidSlot = text{
		en: "Invalid slot. Please select one of the listed time slots:",
		sw: "Nafasi si sahihi. Tafadhali chagua mojawapo ya nafasi zilizoorodheshwa:",
	}
	msgBookingFailed = text{
		en: "Sorry, we could not complete your booking. Please try again later.",
		sw: "Samahani, hatukuweza kukamilisha miadi yako. Tafadhali jaribu tena baadaye.",
	}
	msgDetailsFailed = text{
		en: "Sorry, we could not fetch the details. Please try again later.",
		sw: "Samahani, hatukuweza kupata maelezo. Tafadhali jaribu tena baadaye.",
	}
	msgBookingDone = text{
		en: "Your appointment has been scheduled.\nAn appointment confirmation SMS has been sent to your phone.",
		sw: "Miadi yako imepangwa.\nUjumbe wa uthibitisho wa miadi umetumwa kwenye simu yako.",
	}
	msgSystemError = text{
		en: "A system error occurred. Please try again later.",
		sw: "Hitilafu ya mfumo imetokea. Tafadhali jaribu tena baadaye.",
	}
)

func confirmSummary(lang, doctor, date, slotLabel, kind string) string {
	kindLabel := text{en: "Physical", sw: "Ana kwa ana"}
	if kind == kindRemote {
		kindLabel = text{en: "Remote (Video)", sw: "Mbali (Video)"}
	}
	if lang == LangSwahili {
		return fmt.Sprintf("Thibitisha miadi:\nDaktari: %s\nTarehe: %s\nMuda: %s\nAina: %s\n1. Thibitisha\n2. Badilisha muda\n0. Ghairi",
			doctor, date, slotLabel, kindLabel.sw)
	}
	return fmt.Sprintf("Confirm appointment:\nDoctor: %s\nDate: %s\nTime: %s\nType: %s\n1. Confirm\n2. Change time\n0. Cancel",
		doctor, date, slotLabel, kindLabel.en)
}

func triageMenu(lang, summary, specialist string) string {
	if lang == LangSwahili {
		return fmt.Sprintf("%s\nMtaalamu anayependekezwa: %s\n1. Panga miadi na %s\n2. Chagua mtaalamu mwingine\n3. Maelezo ya mtaalamu\n0. Ondoka",
			summary, specialist, specialist)
	}
	return fmt.Sprintf("%s\nRecommended specialist: %s\n1. Book with %s\n2. Choose a different specialist\n3. View specialist details\n0. Exit",
		summary, specialist, specialist)
}

func noDoctorsPrompt(lang, specialist, location string) string {
	if lang == LangSwahili {
		return fmt.Sprintf("Hakuna %s aliyesajiliwa kwa sasa katika %s:\n0. Badilisha Eneo\n100. Ondoka", specialist, location)
	}
	return fmt.Sprintf("There is currently no registered %s in %s:\n0. Change Location\n100. Exit", specialist, location)
}

func selectDoctorPrompt(lang, specialist, location string) string {
	if lang == LangSwahili {
		return fmt.Sprintf("Chagua %s katika %s:", specialist, location)
	}
	return fmt.Sprintf("Select a %s in %s:", specialist, location)
}

func doctorCard(lang string, name, contact, location, email, address string) string {
	if lang == LangSwahili {
		return fmt.Sprintf("%s:\nSimu: %s\nMji: %s\nBarua pepe: %s\nAnwani: %s", name, contact, location, email, address)
	}
	return fmt.Sprintf("%s:\nMobile: %s\nTown: %s\nEmail: %s\nAddress: %s", name, contact, location, email, address)
}

func priorityNote(lang, urgency string) string {
	if lang == LangSwahili {
		return fmt.Sprintf("\nKipaumbele: %s.", urgency)
	}
	return fmt.Sprintf("\nPriority: %s.", urgency)
}

// farewell renders the time-of-day goodbye: before 12:00 a day greeting,
// 12:00-16:59 afternoon, 17:00 onward evening.
func farewell(lang string, hour int) string {
	var greeting text
	switch {
	case hour < 12:
		greeting = text{en: "Good Day!", sw: "Habari za siku!"}
	case hour < 17:
		greeting = text{en: "Good Afternoon!", sw: "Habari za mchana!"}
	default:
		greeting = text{en: "Good Evening!", sw: "Habari za jioni!"}
	}
	if lang == LangSwahili {
		return fmt.Sprintf("Asante kwa Muda Wako! Pate %s", greeting.sw)
	}
	return fmt.Sprintf("Thanks for Your Time!, Have a %s", greeting.en)
}
