package items

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// EncodeDatabase serializes the compiled item database read by the
// compiler: one struct per item in a protobuf ListValue.
func EncodeDatabase(list []Item) ([]byte, error) {
	values := make([]*structpb.Value, 0, len(list))
	for _, it := range list {
		models := make([]interface{}, len(it.Models))
		for i, m := range it.Models {
			models[i] = m
		}
		s, err := structpb.NewStruct(map[string]interface{}{
			"id":        it.ID,
			"deletable": it.Deletable,
			"copiable":  it.Copiable,
			"facing":    it.Facing,
			"models":    models,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to encode item %s: %w", it.ID, err)
		}
		values = append(values, structpb.NewStructValue(s))
	}

	data, err := proto.MarshalOptions{Deterministic: true}.Marshal(&structpb.ListValue{Values: values})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal item database: %w", err)
	}
	return data, nil
}

// DecodeDatabase reads a database written by EncodeDatabase. Config and
// Editor are not stored and come back nil.
func DecodeDatabase(data []byte) ([]Item, error) {
	var list structpb.ListValue
	if err := proto.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item database: %w", err)
	}

	out := make([]Item, 0, len(list.Values))
	for i, v := range list.Values {
		s := v.GetStructValue()
		if s == nil {
			return nil, fmt.Errorf("item database entry %d is not a struct", i)
		}
		f := s.GetFields()
		it := Item{
			ID:        f["id"].GetStringValue(),
			Deletable: f["deletable"].GetBoolValue(),
			Copiable:  f["copiable"].GetBoolValue(),
			Facing:    f["facing"].GetStringValue(),
		}
		for _, m := range f["models"].GetListValue().GetValues() {
			it.Models = append(it.Models, m.GetStringValue())
		}
		out = append(out, it)
	}
	return out, nil
}
