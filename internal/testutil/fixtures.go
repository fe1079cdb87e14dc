package testutil

import (
	"time"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
)

// FixtureTestDate is the end timestamp used by record fixtures.
var FixtureTestDate = time.Date(2024, time.March, 10, 10, 30, 0, 0, time.UTC)

// NewPSVRecord returns a submitted, current PSV record with one annual test.
func NewPSVRecord() *testrecord.TestRecord {
	start := FixtureTestDate.Add(-90 * time.Minute)
	end := FixtureTestDate
	return &testrecord.TestRecord{
		TestResultID:         "b1a2c3d4-0001",
		SystemNumber:         "11000001",
		VIN:                  "1B7GG36N12S678410",
		VRM:                  "CT70001",
		TesterStaffID:        "staff-1",
		TesterName:           "Dev Tester",
		TesterEmailAddress:   "dev.tester@example.com",
		TestStationPNumber:   "87-1369569",
		VehicleType:          testrecord.VehicleTypePSV,
		EuVehicleCategory:    "m1",
		VehicleSize:          "small",
		VehicleConfiguration: "rigid",
		NoOfAxles:            2,
		NumberOfWheelsDriven: testrecord.IntPtr(4),
		VehicleClass:         &testrecord.VehicleClass{Code: "s", Description: "small psv"},
		TestStatus:           testrecord.StatusSubmitted,
		TestStartTimestamp:   &start,
		TestEndTimestamp:     &end,
		TestVersion:          testrecord.VersionCurrent,
		CreatedAt:            &end,
		CreatedByID:          "staff-1",
		CreatedByName:        "Dev Tester",
		TestTypes: []*testrecord.TestTypeEntry{
			{
				TestTypeID:             "1",
				Name:                   "Annual test",
				TestTypeName:           "Annual test",
				TestTypeClassification: testrecord.ClassificationAnnualWithCertificate,
				TestResult:             testrecord.ResultPass,
				TestTypeStartTimestamp: testrecord.TimePtr(start),
				TestTypeEndTimestamp:   testrecord.TimePtr(end),
				TestCode:               "aas",
				TestNumber:             "W01A00310",
			},
		},
	}
}

// NewHGVRecord returns a submitted, current HGV record with an annual test
// and a non-certificate test type.
func NewHGVRecord() *testrecord.TestRecord {
	start := FixtureTestDate.Add(-2 * time.Hour)
	end := FixtureTestDate
	return &testrecord.TestRecord{
		TestResultID:         "b1a2c3d4-0002",
		SystemNumber:         "11000002",
		VIN:                  "P012301098765",
		VRM:                  "HG70002",
		TesterStaffID:        "staff-2",
		TesterName:           "Second Tester",
		VehicleType:          testrecord.VehicleTypeHGV,
		EuVehicleCategory:    "n3",
		VehicleConfiguration: "rigid",
		NoOfAxles:            3,
		RegnDate:             "2019-05-20",
		TestStatus:           testrecord.StatusSubmitted,
		TestStartTimestamp:   &start,
		TestEndTimestamp:     &end,
		TestVersion:          testrecord.VersionCurrent,
		TestTypes: []*testrecord.TestTypeEntry{
			{
				TestTypeID:             "94",
				Name:                   "Annual test",
				TestTypeClassification: testrecord.ClassificationAnnualWithCertificate,
				TestResult:             testrecord.ResultPass,
				TestTypeStartTimestamp: testrecord.TimePtr(start),
				TestTypeEndTimestamp:   testrecord.TimePtr(end),
				TestCode:               "aav3",
				TestNumber:             "W01A00320",
			},
			{
				TestTypeID:             "62",
				Name:                   "Paid roadworthiness retest",
				TestTypeClassification: testrecord.ClassificationNonAnnual,
				TestResult:             testrecord.ResultPass,
				TestTypeStartTimestamp: testrecord.TimePtr(start),
				TestTypeEndTimestamp:   testrecord.TimePtr(end),
				TestCode:               "rpv",
				TestNumber:             "W01A00321",
			},
		},
	}
}
