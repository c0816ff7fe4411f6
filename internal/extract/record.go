package extract

// Record is the canonical result of one extraction run. Every canonical
// field is always present; fields the pipeline could not recover stay "".
// OldID and IssueDate only appear on the QR path, which carries them in
// addition to the canonical eight.
type Record struct {
	FullName      string
	DateOfBirth   string
	Sex           string
	Nationality   string
	PlaceOfOrigin string
	Number        string
	Residence     string
	ExpiryDate    string

	OldID     string
	IssueDate string
}

// Canonical output keys. Everything else in the aliased map mirrors one of these.
const (
	KeyFullName      = "fullname"
	KeyDateOfBirth   = "date_of_birth"
	KeySex           = "sex"
	KeyNationality   = "nationality"
	KeyPlaceOfOrigin = "place_of_origin"
	KeyNumber        = "no"
	KeyResidence     = "residence"
	KeyExpiryDate    = "expiry_date"
)

// aliasOf maps every alias key to the canonical field it mirrors.
var aliasOf = map[string]string{
	"full_name":      KeyFullName,
	"id_number":      KeyNumber,
	"dob":            KeyDateOfBirth,
	"gender":         KeySex,
	"ho_va_ten":      KeyFullName,
	"so":             KeyNumber,
	"ngay_sinh":      KeyDateOfBirth,
	"gioi_tinh":      KeySex,
	"quoc_tich":      KeyNationality,
	"que_quan":       KeyPlaceOfOrigin,
	"noi_thuong_tru": KeyResidence,
	"co_gia_tri_den": KeyExpiryDate,
}

// Canonical returns the record as a map of the eight canonical keys.
// All keys are present even when the value is empty.
func (r Record) Canonical() map[string]string {
	return map[string]string{
		KeyFullName:      r.FullName,
		KeyDateOfBirth:   r.DateOfBirth,
		KeySex:           r.Sex,
		KeyNationality:   r.Nationality,
		KeyPlaceOfOrigin: r.PlaceOfOrigin,
		KeyNumber:        r.Number,
		KeyResidence:     r.Residence,
		KeyExpiryDate:    r.ExpiryDate,
	}
}

// Aliased composes the consumer-facing map: canonical keys plus the fixed
// alias set, every alias recomputed from its canonical field. Templates
// resolve fields by key lookup with "" as default, so we over-produce keys
// rather than make any consumer guess the canonical name.
//
// Call this again after any manual edit to the record; aliases are derived,
// never stored independently.
func (r Record) Aliased() map[string]string {
	out := r.Canonical()
	for alias, canonical := range aliasOf {
		out[alias] = out[canonical]
	}
	if r.OldID != "" {
		out["old_id"] = r.OldID
	}
	if r.IssueDate != "" {
		out["issue_date"] = r.IssueDate
	}
	return out
}
