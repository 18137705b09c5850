package http

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/tim-schneider/nexsync/resource"
	"github.com/tim-schneider/nexsync/schema"
	serverdomain "github.com/tim-schneider/nexsync/server"
)

var listJQCodeCache sync.Map

func (g *Gateway) decodeListResponse(ctx context.Context, rt schema.ResourceType, body []byte) ([]resource.Doc, error) {
	payload, err := decodeJSONResponse(body)
	if err != nil {
		return nil, err
	}
	payload, err = applyListJQ(ctx, payload, rt.ListJQ)
	if err != nil {
		return nil, err
	}

	items, err := extractListItems(payload)
	if err != nil {
		return nil, err
	}

	list := make([]resource.Doc, 0, len(items))
	for _, item := range items {
		doc, isDoc := item.(map[string]any)
		if !isDoc {
			return nil, serverdomain.NewListPayloadShapeError("list payload entries must be JSON objects", nil)
		}
		list = append(list, doc)
	}
	return list, nil
}

// extractListItems resolves the item array out of a LIST payload: a bare
// array, an object with an "items" array, or an object with exactly one
// array field. Anything else is a shape error the caller treats as a
// failed fetch.
func extractListItems(payload any) ([]any, error) {
	switch typed := payload.(type) {
	case nil:
		return nil, nil
	case []any:
		return typed, nil
	case map[string]any:
		items, ok := typed["items"]
		if ok {
			values, valuesOK := items.([]any)
			if !valuesOK {
				return nil, serverdomain.NewListPayloadShapeError("list response \"items\" must be an array", nil)
			}
			return values, nil
		}

		arrayFieldKeys := make([]string, 0, len(typed))
		for key, field := range typed {
			if _, fieldIsArray := field.([]any); fieldIsArray {
				arrayFieldKeys = append(arrayFieldKeys, key)
			}
		}
		sort.Strings(arrayFieldKeys)

		if len(arrayFieldKeys) == 1 {
			values, _ := typed[arrayFieldKeys[0]].([]any)
			return values, nil
		}

		if len(arrayFieldKeys) > 1 {
			return nil, serverdomain.NewListPayloadShapeError(
				fmt.Sprintf(
					"list response object is ambiguous: expected an \"items\" array or a single array field, found array fields [%s]",
					strings.Join(arrayFieldKeys, ", "),
				),
				nil,
			)
		}

		return nil, serverdomain.NewListPayloadShapeError("list response object must include an \"items\" array", nil)
	default:
		return nil, serverdomain.NewListPayloadShapeError("list response must be an array or an object with an \"items\" array", nil)
	}
}

func applyListJQ(ctx context.Context, payload any, expression string) (any, error) {
	trimmedExpression := strings.TrimSpace(expression)
	if trimmedExpression == "" {
		return payload, nil
	}

	code, err := cachedListJQCode(trimmedExpression)
	if err != nil {
		return nil, validationError("invalid list jq expression", err)
	}

	iterator := code.RunWithContext(ctx, payload)
	results := make([]any, 0, 1)
	for {
		value, ok := iterator.Next()
		if !ok {
			break
		}
		if valueErr, isErr := value.(error); isErr {
			return nil, validationError("failed to evaluate list jq expression", valueErr)
		}
		results = append(results, value)
	}

	if len(results) == 0 {
		return []any{}, nil
	}
	if len(results) == 1 {
		return results[0], nil
	}
	return results, nil
}

func cachedListJQCode(expression string) (*gojq.Code, error) {
	if cached, ok := listJQCodeCache.Load(expression); ok {
		if typed, ok := cached.(*gojq.Code); ok && typed != nil {
			return typed, nil
		}
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, err
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, err
	}

	actual, _ := listJQCodeCache.LoadOrStore(expression, code)
	typed, _ := actual.(*gojq.Code)
	if typed == nil {
		return code, nil
	}
	return typed, nil
}
