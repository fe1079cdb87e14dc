package expiry

import (
	"time"

	"github.com/turtacn/vehicle-test-records/internal/domain/dates"
	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
)

// RequiresCertificate reports whether entry should carry a certificate
// number on a record of vehicle type vt.
func RequiresCertificate(catalog *Catalog, vt testrecord.VehicleType, entry *testrecord.TestTypeEntry) bool {
	if entry == nil {
		return false
	}
	classified := entry.TestTypeClassification == testrecord.ClassificationAnnualWithCertificate ||
		(isSpecialistClassification(entry.TestTypeClassification) && entry.CertificateNumber == "")
	if !classified || entry.TestResult == testrecord.ResultAbandoned {
		return false
	}
	if catalog.Has(entry.TestTypeID, CapabilityADR) || catalog.Has(entry.TestTypeID, CapabilityLEC) {
		return false
	}
	if catalog.Has(entry.TestTypeID, CapabilityRoadworthiness) {
		vt = vt.Normalize()
		if vt != testrecord.VehicleTypeHGV && vt != testrecord.VehicleTypeTRL {
			return false
		}
		if entry.TestResult == testrecord.ResultFail {
			return false
		}
	}
	return true
}

func isSpecialistClassification(c testrecord.Classification) bool {
	return c == testrecord.ClassificationIVAWithCertificate || c == testrecord.ClassificationMSVAWithCertificate
}

// ApplyCertificateNumbers copies the test number into the certificate number
// of every entry that requires one.
func ApplyCertificateNumbers(catalog *Catalog, r *testrecord.TestRecord) {
	for _, tt := range r.TestTypes {
		if tt.TestNumber != "" && RequiresCertificate(catalog, r.VehicleType, tt) {
			tt.CertificateNumber = tt.TestNumber
		}
	}
}

// AnniversaryFor derives the anniversary date from an expiry date. PSV
// anniversaries open the two month renewal window.
func AnniversaryFor(vt testrecord.VehicleType, expiry time.Time) time.Time {
	if vt.Normalize() == testrecord.VehicleTypePSV {
		return dates.AddDays(dates.SubtractMonths(expiry, 2), 1)
	}
	return dates.StartOfDay(expiry)
}

// ApplyAnniversaryDates sets the anniversary of every entry that has an
// expiry date.
func ApplyAnniversaryDates(r *testrecord.TestRecord) {
	for _, tt := range r.TestTypes {
		if tt.TestExpiryDate == nil {
			continue
		}
		a := AnniversaryFor(r.VehicleType, *tt.TestExpiryDate)
		tt.TestAnniversaryDate = &a
	}
}
