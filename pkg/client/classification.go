package client

import (
	"context"
	stderrors "errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/turtacn/vehicle-test-records/internal/domain/testrecord"
)

// classificationFields are the attributes requested from the test types
// service.
const classificationFields = "testTypeClassification,defaultTestCode,linkedTestCode,name,testTypeName"

// ClassificationClient queries the test types service.
type ClassificationClient struct {
	client *Client
}

var _ testrecord.ClassificationLookup = (*ClassificationClient)(nil)

func NewClassificationClient(c *Client) *ClassificationClient {
	return &ClassificationClient{client: c}
}

// GetCodeAndClassification resolves testTypeID for vehicle. An unknown test
// type or vehicle combination yields (nil, nil).
func (c *ClassificationClient) GetCodeAndClassification(ctx context.Context, testTypeID string, vehicle testrecord.VehicleDescriptor) (*testrecord.CodeAndClassification, error) {
	var out testrecord.CodeAndClassification
	err := c.client.do(ctx, request{
		method: "GET",
		path:   "/test-types/" + url.PathEscape(testTypeID),
		query:  classificationQuery(vehicle),
	}, &out)
	if err != nil {
		var apiErr *APIError
		if stderrors.As(err, &apiErr) {
			if apiErr.IsNotFound() {
				return nil, nil
			}
			return nil, apiErr.AppError()
		}
		return nil, err
	}
	return &out, nil
}

func classificationQuery(v testrecord.VehicleDescriptor) url.Values {
	q := url.Values{}
	q.Set("fields", classificationFields)
	q.Set("vehicleType", string(v.VehicleType))
	set := func(k, val string) {
		if val != "" {
			q.Set(k, val)
		}
	}
	set("vehicleSize", v.VehicleSize)
	set("vehicleConfiguration", v.VehicleConfiguration)
	set("euVehicleCategory", v.EuVehicleCategory)
	set("vehicleClass", v.VehicleClassCode)
	if v.NoOfAxles > 0 {
		q.Set("vehicleAxles", strconv.Itoa(v.NoOfAxles))
	}
	if len(v.VehicleSubclass) > 0 {
		q.Set("vehicleSubclass", strings.Join(v.VehicleSubclass, ","))
	}
	if v.NumberOfWheelsDriven != nil {
		q.Set("vehicleWheels", strconv.Itoa(*v.NumberOfWheelsDriven))
	}
	return q
}
