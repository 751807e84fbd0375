/*
Package openrtb_ext defines the bidder names known to the adapter kit and the input
validation for each bidder's params.

The bidder params are validated by a BidderParamValidator, which relies on the
json-schemas from static/bidder-params/{bidder}.json
*/
package openrtb_ext
