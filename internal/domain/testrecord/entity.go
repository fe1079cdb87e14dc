// Package testrecord defines the vehicle test record aggregate, its test type
// entries, the collaborator contracts used to read and write records, and the
// pure helpers of the record versioning protocol.
package testrecord

import (
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Enumerations
// ─────────────────────────────────────────────────────────────────────────────

// VehicleType selects the expiry rule table that applies to a record.
type VehicleType string

const (
	VehicleTypePSV        VehicleType = "psv"
	VehicleTypeHGV        VehicleType = "hgv"
	VehicleTypeTRL        VehicleType = "trl"
	VehicleTypeLGV        VehicleType = "lgv"
	VehicleTypeCar        VehicleType = "car"
	VehicleTypeMotorcycle VehicleType = "motorcycle"
)

// Normalize lower-cases and trims the vehicle type.
func (v VehicleType) Normalize() VehicleType {
	return VehicleType(strings.ToLower(strings.TrimSpace(string(v))))
}

// Status is the submission status of a record.
type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusCancelled Status = "cancelled"
)

// Version is the lifecycle tag of a stored record.
type Version string

const (
	VersionCurrent  Version = "current"
	VersionArchived Version = "archived"
)

// IsCurrent treats an unset version as current.
func (v Version) IsCurrent() bool {
	return v == "" || v == VersionCurrent
}

// Result is the outcome of one test type.
type Result string

const (
	ResultPass      Result = "pass"
	ResultFail      Result = "fail"
	ResultPRS       Result = "prs"
	ResultAbandoned Result = "abandoned"
)

// Classification is the certificate and expiry eligibility of a test type.
type Classification string

const (
	ClassificationAnnualWithCertificate Classification = "Annual With Certificate"
	ClassificationAnnualNoCertificate   Classification = "Annual NO CERTIFICATE"
	ClassificationNonAnnual             Classification = "NON ANNUAL"
	ClassificationIVAWithCertificate    Classification = "IVA With Certificate"
	ClassificationMSVAWithCertificate   Classification = "MSVA With Certificate"
)

// ─────────────────────────────────────────────────────────────────────────────
// Aggregate
// ─────────────────────────────────────────────────────────────────────────────

// VehicleClass is the class code carried on a record.
type VehicleClass struct {
	Code        string `json:"code"`
	Description string `json:"description,omitempty"`
}

// TestRecord is one vehicle test event. Only a current record may carry
// TestHistory; records nested inside history never do.
type TestRecord struct {
	TestResultID       string `json:"testResultId"`
	SystemNumber       string `json:"systemNumber"`
	VIN                string `json:"vin"`
	VRM                string `json:"vrm,omitempty"`
	TesterStaffID      string `json:"testerStaffId"`
	TesterName         string `json:"testerName,omitempty"`
	TesterEmailAddress string `json:"testerEmailAddress,omitempty"`
	TestStationPNumber string `json:"testStationPNumber,omitempty"`

	VehicleType          VehicleType   `json:"vehicleType"`
	EuVehicleCategory    string        `json:"euVehicleCategory,omitempty"`
	VehicleSize          string        `json:"vehicleSize,omitempty"`
	VehicleConfiguration string        `json:"vehicleConfiguration,omitempty"`
	NoOfAxles            int           `json:"noOfAxles,omitempty"`
	NumberOfWheelsDriven *int          `json:"numberOfWheelsDriven,omitempty"`
	VehicleClass         *VehicleClass `json:"vehicleClass,omitempty"`
	VehicleSubclass      []string      `json:"vehicleSubclass,omitempty"`

	// RegnDate and FirstUseDate keep the raw submitted strings; validity is
	// judged by dates.IsValidDate.
	RegnDate     string `json:"regnDate,omitempty"`
	FirstUseDate string `json:"firstUseDate,omitempty"`

	TestStatus         Status     `json:"testStatus"`
	TestStartTimestamp *time.Time `json:"testStartTimestamp,omitempty"`
	TestEndTimestamp   *time.Time `json:"testEndTimestamp,omitempty"`
	TestVersion        Version    `json:"testVersion,omitempty"`
	ReasonForCreation  string     `json:"reasonForCreation,omitempty"`

	CreatedAt         *time.Time `json:"createdAt,omitempty"`
	CreatedByID       string     `json:"createdById,omitempty"`
	CreatedByName     string     `json:"createdByName,omitempty"`
	LastUpdatedAt     *time.Time `json:"lastUpdatedAt,omitempty"`
	LastUpdatedByID   string     `json:"lastUpdatedById,omitempty"`
	LastUpdatedByName string     `json:"lastUpdatedByName,omitempty"`

	TestTypes   []*TestTypeEntry `json:"testTypes"`
	TestHistory []*TestRecord    `json:"testHistory,omitempty"`
}

// TestTypeEntry is one inspection within a record.
type TestTypeEntry struct {
	TestTypeID             string         `json:"testTypeId"`
	Name                   string         `json:"name,omitempty"`
	TestTypeName           string         `json:"testTypeName,omitempty"`
	TestTypeClassification Classification `json:"testTypeClassification,omitempty"`
	TestResult             Result         `json:"testResult"`
	TestTypeStartTimestamp *time.Time     `json:"testTypeStartTimestamp,omitempty"`
	TestTypeEndTimestamp   *time.Time     `json:"testTypeEndTimestamp,omitempty"`
	TestCode               string         `json:"testCode,omitempty"`
	TestNumber             string         `json:"testNumber,omitempty"`
	CertificateNumber      string         `json:"certificateNumber,omitempty"`
	TestExpiryDate         *time.Time     `json:"testExpiryDate,omitempty"`
	TestAnniversaryDate    *time.Time     `json:"testAnniversaryDate,omitempty"`
	ReasonForAbandoning    string         `json:"reasonForAbandoning,omitempty"`
	AdditionalNotes        string         `json:"additionalNotesRecorded,omitempty"`
}

// VehicleDescriptor is the subset of vehicle attributes the classification
// service needs to resolve test codes.
type VehicleDescriptor struct {
	VehicleType          VehicleType `json:"vehicleType"`
	VehicleSize          string      `json:"vehicleSize,omitempty"`
	VehicleConfiguration string      `json:"vehicleConfiguration,omitempty"`
	NoOfAxles            int         `json:"noOfAxles,omitempty"`
	EuVehicleCategory    string      `json:"euVehicleCategory,omitempty"`
	VehicleClassCode     string      `json:"vehicleClass,omitempty"`
	VehicleSubclass      []string    `json:"vehicleSubclass,omitempty"`
	NumberOfWheelsDriven *int        `json:"numberOfWheelsDriven,omitempty"`
}

// Descriptor extracts the vehicle descriptor of r.
func (r *TestRecord) Descriptor() VehicleDescriptor {
	d := VehicleDescriptor{
		VehicleType:          r.VehicleType.Normalize(),
		VehicleSize:          r.VehicleSize,
		VehicleConfiguration: r.VehicleConfiguration,
		NoOfAxles:            r.NoOfAxles,
		EuVehicleCategory:    r.EuVehicleCategory,
		VehicleSubclass:      append([]string(nil), r.VehicleSubclass...),
		NumberOfWheelsDriven: cloneInt(r.NumberOfWheelsDriven),
	}
	if r.VehicleClass != nil {
		d.VehicleClassCode = r.VehicleClass.Code
	}
	return d
}

// RegistrationOrFirstUse returns the registration date, falling back to the
// first use date (trailers carry only the latter).
func (r *TestRecord) RegistrationOrFirstUse() string {
	if r.VehicleType.Normalize() == VehicleTypeTRL && r.FirstUseDate != "" {
		return r.FirstUseDate
	}
	if r.RegnDate != "" {
		return r.RegnDate
	}
	return r.FirstUseDate
}

// TestDate is the record end timestamp, or now when the test has not ended.
func (r *TestRecord) TestDate(now time.Time) time.Time {
	if r.TestEndTimestamp != nil && !r.TestEndTimestamp.IsZero() {
		return r.TestEndTimestamp.UTC()
	}
	return now.UTC()
}

// ─────────────────────────────────────────────────────────────────────────────
// Deep copy
// ─────────────────────────────────────────────────────────────────────────────

// Clone returns a deep copy of r, including nested history.
func (r *TestRecord) Clone() *TestRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.NumberOfWheelsDriven = cloneInt(r.NumberOfWheelsDriven)
	if r.VehicleClass != nil {
		vc := *r.VehicleClass
		c.VehicleClass = &vc
	}
	if r.VehicleSubclass != nil {
		c.VehicleSubclass = append([]string(nil), r.VehicleSubclass...)
	}
	c.TestStartTimestamp = cloneTime(r.TestStartTimestamp)
	c.TestEndTimestamp = cloneTime(r.TestEndTimestamp)
	c.CreatedAt = cloneTime(r.CreatedAt)
	c.LastUpdatedAt = cloneTime(r.LastUpdatedAt)
	if r.TestTypes != nil {
		c.TestTypes = make([]*TestTypeEntry, len(r.TestTypes))
		for i, tt := range r.TestTypes {
			c.TestTypes[i] = tt.Clone()
		}
	}
	if r.TestHistory != nil {
		c.TestHistory = make([]*TestRecord, len(r.TestHistory))
		for i, h := range r.TestHistory {
			c.TestHistory[i] = h.Clone()
		}
	}
	return &c
}

// Clone returns a deep copy of e.
func (e *TestTypeEntry) Clone() *TestTypeEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.TestTypeStartTimestamp = cloneTime(e.TestTypeStartTimestamp)
	c.TestTypeEndTimestamp = cloneTime(e.TestTypeEndTimestamp)
	c.TestExpiryDate = cloneTime(e.TestExpiryDate)
	c.TestAnniversaryDate = cloneTime(e.TestAnniversaryDate)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time { return &t }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }
