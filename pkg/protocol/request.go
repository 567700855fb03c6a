package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ProductPrefix is prepended to the product id in a subscribe request.
const ProductPrefix = "trading.product."

// Request keys. Client requests carry no discriminator; the key present decides
// the request type.
const (
	keySubscribe   = "subscribeTo"
	keyUnsubscribe = "unsubscribeFrom"
)

// Request is one client-originated message: SubscribeRequest or UnsubscribeRequest.
type Request interface {
	request()
}

// SubscribeRequest asks the server to start streaming quotes for a product.
type SubscribeRequest struct {
	ProductID string
}

// UnsubscribeRequest asks the server to drop the subscription with the given identity.
type UnsubscribeRequest struct {
	ConnectionID int64
}

func (SubscribeRequest) request()   {}
func (UnsubscribeRequest) request() {}

// EncodeRequest serialises req to its JSON wire form.
func EncodeRequest(req Request) ([]byte, error) {
	switch r := req.(type) {
	case SubscribeRequest:
		return json.Marshal(map[string]string{keySubscribe: ProductPrefix + r.ProductID})
	case UnsubscribeRequest:
		return json.Marshal(map[string]int64{keyUnsubscribe: r.ConnectionID})
	default:
		return nil, fmt.Errorf("protocol: cannot encode request %T", req)
	}
}

// DecodeRequest parses a client request. Subscribe is checked before unsubscribe
// when both keys are present.
func DecodeRequest(data []byte) (Request, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, malformed("", err)
	}

	if raw, ok := fields[keySubscribe]; ok {
		var topic string
		if err := json.Unmarshal(raw, &topic); err != nil {
			return nil, malformed(keySubscribe, err)
		}
		product, found := strings.CutPrefix(topic, ProductPrefix)
		if !found || product == "" {
			return nil, malformed(keySubscribe, fmt.Errorf("topic %q does not name a product", topic))
		}
		return SubscribeRequest{ProductID: product}, nil
	}

	if raw, ok := fields[keyUnsubscribe]; ok {
		var id *int64
		if err := json.Unmarshal(raw, &id); err != nil {
			return nil, malformed(keyUnsubscribe, err)
		}
		if id == nil {
			return nil, missingField(keyUnsubscribe, keyUnsubscribe)
		}
		return UnsubscribeRequest{ConnectionID: *id}, nil
	}

	return nil, unknownType("")
}
