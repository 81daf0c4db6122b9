// Package i18n resolves message keys to Romanian text.
//
// Validation rules and the error mapper only ever produce keys; templates
// resolve them here at render time.
package i18n

import "fmt"

// KeyUnknownError is the fallback for errors with no specific message.
const KeyUnknownError = "errors.unknown"

var ro = map[string]string{
	// form engine
	"fieldRequired":            "Câmpul este obligatoriu",
	"validation.invalidFormat": "Format invalid",
	"validation.email":         "Adresa de e-mail nu este validă",
	"validation.phone":         "Numărul de telefon trebuie să aibă 9 cifre după +40",
	"validation.mobile":        "Introduceți un număr de mobil (07xx xxx xxx)",
	"validation.percentage":    "Procentul trebuie să fie între 0 și 100",
	"validation.minLength":     "Valoarea este prea scurtă",
	"validation.futureDate":    "Data trebuie să fie în viitor",
	"validation.dateOrder":     "Data de sfârșit trebuie să fie după data de început",
	"validation.invalidOption": "Opțiune invalidă",
	"validation.range":         "Valoare în afara intervalului permis",
	"validation.otpCode":       "Codul trebuie să aibă 6 cifre",

	// errors
	"errors.title":             "Eroare",
	"errors.unknown":           "A apărut o eroare necunoscută",
	"errors.validation":        "Verificați câmpurile marcate",
	"errors.busy":              "Cererea anterioară este încă în curs",
	"errors.sessionExpired":    "Sesiunea a expirat. Autentificați-vă din nou",
	"errors.customerLoggedOut": "Ați fost deconectat. Autentificați-vă din nou",
	"errors.unauthorized":      "Date de autentificare incorecte",
	"errors.forbidden":         "Nu aveți drepturi pentru această acțiune",
	"errors.notFound":          "Înregistrarea nu a fost găsită",
	"errors.conflict":          "Înregistrarea există deja",
	"errors.rateLimit":         "Prea multe cereri. Încercați din nou peste un minut",
	"errors.server":            "Serverul nu a putut procesa cererea",
	"errors.network":           "Serverul nu poate fi contactat",
	"errors.timeout":           "Cererea a durat prea mult",
	"errors.cancelled":         "Cererea a fost anulată",
	"errors.geocoding":         "Adresa nu a putut fi localizată",
	"errors.otpCooldown":       "Puteți retrimite codul în %d secunde",

	// toasts
	"toast.saved":    "Modificările au fost salvate",
	"toast.created":  "Înregistrarea a fost creată",
	"toast.deleted":  "Înregistrarea a fost ștearsă",
	"toast.otpSent":  "Codul a fost trimis prin SMS",
	"toast.loggedIn": "Bine ați venit",

	// common
	"common.save":     "Salvează",
	"common.saving":   "Se salvează...",
	"common.cancel":   "Anulează",
	"common.add":      "Adaugă",
	"common.edit":     "Editează",
	"common.delete":   "Șterge",
	"common.confirm":  "Sigur doriți să ștergeți?",
	"common.search":   "Caută...",
	"common.filters":  "Coloane căutate",
	"common.export":   "Export Excel",
	"common.loading":  "Se încarcă...",
	"common.empty":    "Nu există înregistrări",
	"common.previous": "Înapoi",
	"common.next":     "Înainte",
	"common.yes":      "Da",
	"common.no":       "Nu",
	"common.active":   "Activ",
	"common.inactive": "Inactiv",
	"common.logout":   "Ieșire",

	// staff
	"nav.dashboard": "Statistici",
	"nav.companies": "Companii",
	"nav.branches":  "Stații ITP",
	"nav.users":     "Utilizatori",
	"nav.packages":  "Pachete",
	"nav.discounts": "Reduceri",

	"stats.customers":           "Clienți",
	"stats.cars":                "Mașini",
	"stats.smsSent":             "SMS trimise",
	"stats.activeSubscriptions": "Abonamente active",
	"stats.month":               "Luna",
	"stats.inspections":         "Inspecții",
	"stats.revenue":             "Încasări",

	"login.title":    "Autentificare administrare",
	"login.email":    "E-mail",
	"login.password": "Parolă",
	"login.submit":   "Intră în cont",

	"package.subscribe": "Abonează stația",
	"package.monthly":   "Lunar",
	"package.yearly":    "Anual (10 luni)",
	"package.base":      "Preț de bază",
	"package.discount":  "Reducere",
	"package.total":     "Total",

	// customer
	"customer.login.title":   "Intră în contul tău",
	"customer.login.phone":   "Număr de telefon",
	"customer.login.send":    "Trimite codul",
	"customer.verify.title":  "Introdu codul primit",
	"customer.verify.code":   "Cod SMS",
	"customer.verify.submit": "Verifică",
	"customer.verify.resend": "Retrimite codul",
	"customer.verify.wait":   "Retrimitere posibilă în %d s",
	"customer.cars":          "Mașinile mele",
	"customer.documents":     "Documente",
	"customer.reminders":     "Remindere",
	"customer.stations":      "Stații apropiate",
	"customer.expired":       "Expirat",
	"customer.valid":         "Valabil",
	"customer.myLocation":    "Locația mea",
	"customer.noLocation":    "Introduceți o adresă pentru a vedea stațiile cele mai apropiate",

	// field and column labels
	"field.name":         "Nume",
	"field.cui":          "CUI",
	"field.email":        "E-mail",
	"field.phone":        "Telefon",
	"field.address":      "Adresă",
	"field.city":         "Oraș",
	"field.county":       "Județ",
	"field.active":       "Activ",
	"field.company":      "Companie",
	"field.branch":       "Stație",
	"field.latitude":     "Latitudine",
	"field.longitude":    "Longitudine",
	"field.firstName":    "Prenume",
	"field.lastName":     "Nume de familie",
	"field.role":         "Rol",
	"field.password":     "Parolă",
	"field.description":  "Descriere",
	"field.smsLimit":     "Limită SMS",
	"field.smsRemaining": "SMS rămase",
	"field.monthlyPrice": "Preț lunar",
	"field.package":      "Pachet",
	"field.allPackages":  "Toate pachetele",
	"field.percentage":   "Procent",
	"field.validFrom":    "Valabil de la",
	"field.validTo":      "Valabil până la",
	"field.period":       "Perioadă",
	"field.startsAt":     "Data de început",
	"field.plate":        "Număr înmatriculare",
	"field.make":         "Marcă",
	"field.model":        "Model",
	"field.year":         "An fabricație",
	"field.vin":          "Serie șasiu (VIN)",
	"field.itpExpiresAt": "Expirare ITP",
	"field.documentType": "Tip document",
	"field.number":       "Număr",
	"field.issuedAt":     "Data emiterii",
	"field.expiresAt":    "Data expirării",
	"field.reminderType": "Tip reminder",
	"field.remindAt":     "Data reminder",
	"field.channel":      "Canal",
	"field.note":         "Notă",
	"field.distance":     "Distanță",
	"field.status":       "Stare",

	"document.itp":       "ITP",
	"document.rca":       "RCA",
	"document.rovinieta": "Rovinietă",
	"document.casco":     "CASCO",

	"channel.sms":   "SMS",
	"channel.email": "E-mail",
}

// T resolves key, formatting args into the message when given. Unknown
// keys are returned unchanged.
func T(key string, args ...any) string {
	msg, ok := ro[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

// Has reports whether key is in the catalog.
func Has(key string) bool {
	_, ok := ro[key]
	return ok
}

// Error resolves an error key, falling back to the unknown error message
// for keys the catalog does not know.
func Error(key string) string {
	if key == "" || !Has(key) {
		return ro[KeyUnknownError]
	}
	return T(key)
}
