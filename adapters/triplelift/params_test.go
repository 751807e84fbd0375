package triplelift

import (
	"encoding/json"
	"testing"

	"github.com/prebid/header-adapters/openrtb_ext"
	"github.com/prebid/header-adapters/static"
)

func TestValidParams(t *testing.T) {
	validator, err := openrtb_ext.NewBidderParamsValidator(static.BidderParams, static.BidderParamsDir)
	if err != nil {
		t.Fatalf("Failed to fetch the json schema. %v", err)
	}

	for _, p := range validParams {
		if err := validator.Validate(openrtb_ext.BidderTriplelift, json.RawMessage(p)); err != nil {
			t.Errorf("Schema rejected valid params: %s", p)
		}
	}
}

func TestInvalidParams(t *testing.T) {
	validator, err := openrtb_ext.NewBidderParamsValidator(static.BidderParams, static.BidderParamsDir)
	if err != nil {
		t.Fatalf("Failed to fetch the json schema. %v", err)
	}

	for _, p := range invalidParams {
		if err := validator.Validate(openrtb_ext.BidderTriplelift, json.RawMessage(p)); err == nil {
			t.Errorf("Schema allowed invalid params: %s", p)
		}
	}
}

var validParams = []string{
	`{"inventoryCode": "12345"}`,
	`{"inventoryCode": "12345", "floor": 1.0}`,
	`{"inventoryCode": "another_inv_code", "floor": 0.05}`,
	`{"inventoryCode": 12345}`,
	`{"inventoryCode": 12345.0}`,
	`{"inventoryCode": 1e3}`,
	`{"inventoryCode": 99999999999999999999}`,
	`{"inventoryCode": 12.5}`,
	`{"inventoryCode": true}`,
	`{"inventoryCode": " "}`,
	`{"inventoryCode": "12345", "floor": "1.50"}`,
	`{"inventoryCode": "12345", "floor": null}`,
}

var invalidParams = []string{
	``,
	`null`,
	`[]`,
	`{}`,
	`{"floor": 1.0}`,
	`{"inventoryCode": ""}`,
	`{"inventoryCode": null}`,
	`{"inventoryCode": null, "floor": 1.0}`,
}
