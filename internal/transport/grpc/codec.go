package grpcserver

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/milad/thermo/internal/domain"
	"github.com/milad/thermo/internal/service"
	"github.com/milad/thermo/internal/window"
	"google.golang.org/protobuf/types/known/structpb"
)

// Field names shared with the HTTP API.
const (
	fieldStartTime     = "startTime"
	fieldEndTime       = "endTime"
	fieldType          = "type"
	fieldFormat        = "format"
	fieldPageSize      = "pageSize"
	fieldPageToken     = "pageToken"
	fieldNextPageToken = "nextPageToken"
	fieldID            = "id"
	fieldValue         = "value"
	fieldPosition      = "position"
	fieldRecordedAt    = "recordedAt"
	fieldCount         = "count"
	fieldList          = "list"
)

// str reads a scalar field as text. Numbers are rendered without exponent so
// that epoch millis survive the trip through a double.
func str(s *structpb.Struct, key string) string {
	v, ok := s.GetFields()[key]
	if !ok {
		return ""
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue)
	default:
		return ""
	}
}

// number reads a numeric field; null and missing fields yield ok=false.
func number(s *structpb.Struct, key string) (float64, bool, error) {
	v, ok := s.GetFields()[key]
	if !ok {
		return 0, false, nil
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NullValue:
		return 0, false, nil
	case *structpb.Value_NumberValue:
		return k.NumberValue, true, nil
	case *structpb.Value_StringValue:
		f, err := strconv.ParseFloat(k.StringValue, 64)
		if err != nil {
			return 0, false, fmt.Errorf("%s: %q is not a number", key, k.StringValue)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("%s: unexpected %T", key, k)
	}
}

func numberOrNull(f float64) *structpb.Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return structpb.NewNullValue()
	}
	return structpb.NewNumberValue(f)
}

func numberOrNoData(s *structpb.Struct, key string) (float64, error) {
	f, ok, err := number(s, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return domain.NoData(), nil
	}
	return f, nil
}

func windowToStruct(in window.Input) *structpb.Struct {
	fields := map[string]*structpb.Value{}
	for k, v := range map[string]string{
		fieldStartTime: in.StartTime,
		fieldEndTime:   in.EndTime,
		fieldType:      in.Type,
		fieldFormat:    in.Format,
	} {
		if v != "" {
			fields[k] = structpb.NewStringValue(v)
		}
	}
	return &structpb.Struct{Fields: fields}
}

func windowFromStruct(s *structpb.Struct) window.Input {
	return window.Input{
		StartTime: str(s, fieldStartTime),
		EndTime:   str(s, fieldEndTime),
		Type:      str(s, fieldType),
		Format:    str(s, fieldFormat),
	}
}

func recordToStruct(in service.RecordInput) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldValue: numberOrNull(in.Value),
	}
	if in.Position != "" {
		fields[fieldPosition] = structpb.NewStringValue(in.Position)
	}
	if !in.RecordedAt.IsZero() {
		fields[fieldRecordedAt] = structpb.NewStringValue(in.RecordedAt.Format(time.RFC3339Nano))
	}
	return &structpb.Struct{Fields: fields}
}

func recordFromStruct(s *structpb.Struct) (service.RecordInput, error) {
	v, ok, err := number(s, fieldValue)
	if err != nil {
		return service.RecordInput{}, fmt.Errorf("%w: %v", service.ErrInvalidReading, err)
	}
	if !ok {
		return service.RecordInput{}, fmt.Errorf("%w: value is required", service.ErrInvalidReading)
	}
	at, err := service.ParseRecordedAt(str(s, fieldRecordedAt))
	if err != nil {
		return service.RecordInput{}, err
	}
	return service.RecordInput{Value: v, Position: str(s, fieldPosition), RecordedAt: at}, nil
}

func readingValue(r domain.Reading) *structpb.Value {
	return structpb.NewStructValue(readingToStruct(r))
}

// readingToStruct encodes the id as a string: ids may use all 64 bits and a
// Struct number is a double.
func readingToStruct(r domain.Reading) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldID:         structpb.NewStringValue(strconv.FormatInt(r.ID, 10)),
		fieldValue:      numberOrNull(r.Value),
		fieldPosition:   structpb.NewStringValue(r.Position),
		fieldRecordedAt: structpb.NewStringValue(r.RecordedAt.Format(time.RFC3339Nano)),
	}}
}

func readingFromStruct(s *structpb.Struct) (domain.Reading, error) {
	id, err := strconv.ParseInt(str(s, fieldID), 10, 64)
	if err != nil {
		return domain.Reading{}, fmt.Errorf("reading id: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, str(s, fieldRecordedAt))
	if err != nil {
		return domain.Reading{}, fmt.Errorf("reading recordedAt: %w", err)
	}
	v, err := numberOrNoData(s, fieldValue)
	if err != nil {
		return domain.Reading{}, err
	}
	return domain.Reading{ID: id, Value: v, Position: str(s, fieldPosition), RecordedAt: at}, nil
}

func readingsValue(readings []domain.Reading) *structpb.Value {
	values := make([]*structpb.Value, 0, len(readings))
	for _, r := range readings {
		values = append(values, readingValue(r))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func readingsFromStruct(s *structpb.Struct) ([]domain.Reading, error) {
	items := s.GetFields()[fieldList].GetListValue().GetValues()
	out := make([]domain.Reading, 0, len(items))
	for i, item := range items {
		r, err := readingFromStruct(item.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("list[%d]: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func listPageToStruct(res service.ListPageResult) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldCount: structpb.NewNumberValue(float64(res.Count)),
		fieldList:  readingsValue(res.Readings),
	}
	if res.NextPageToken != "" {
		fields[fieldNextPageToken] = structpb.NewStringValue(res.NextPageToken)
	}
	return &structpb.Struct{Fields: fields}
}

func listPageFromStruct(s *structpb.Struct) (service.ListPageResult, error) {
	readings, err := readingsFromStruct(s)
	if err != nil {
		return service.ListPageResult{}, err
	}
	return service.ListPageResult{
		ListResult:    domain.ListResult{Count: len(readings), Readings: readings},
		NextPageToken: str(s, fieldNextPageToken),
	}, nil
}

func scalarToStruct(res domain.ScalarResult) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldValue: numberOrNull(res.Value),
		fieldCount: structpb.NewNumberValue(float64(res.Count)),
	}}
}

func scalarFromStruct(s *structpb.Struct) (domain.ScalarResult, error) {
	v, err := numberOrNoData(s, fieldValue)
	if err != nil {
		return domain.ScalarResult{}, err
	}
	n, _, err := number(s, fieldCount)
	if err != nil {
		return domain.ScalarResult{}, err
	}
	return domain.ScalarResult{Value: v, Count: int(n)}, nil
}

func extremumToStruct(res domain.ExtremumResult) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldValue: numberOrNull(res.Value),
		fieldCount: structpb.NewNumberValue(float64(res.Count)),
		fieldList:  readingsValue(res.Matches),
	}}
}

func extremumFromStruct(s *structpb.Struct) (domain.ExtremumResult, error) {
	v, err := numberOrNoData(s, fieldValue)
	if err != nil {
		return domain.ExtremumResult{}, err
	}
	matches, err := readingsFromStruct(s)
	if err != nil {
		return domain.ExtremumResult{}, err
	}
	return domain.ExtremumResult{Value: v, Count: len(matches), Matches: matches}, nil
}
