package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sellergate/sellergate_api/internal/cache"
	"github.com/sellergate/sellergate_api/internal/models"
	"github.com/sellergate/sellergate_api/internal/utils"
	"github.com/sellergate/sellergate_api/pkg/httpx"
)

// AttributeResolutionError reports a category whose attributes could not
// be determined, carrying every endpoint variant attempted. Callers must
// be able to distinguish this from "no attributes required": an empty
// answer after unwrapping is this error, never a silent empty success.
type AttributeResolutionError struct {
	CategoryID int
	Attempts   []httpx.Attempt
	Err        error
}

func (e *AttributeResolutionError) Error() string {
	return fmt.Sprintf("could not determine attributes for category %d after %d endpoint attempts", e.CategoryID, len(e.Attempts))
}

func (e *AttributeResolutionError) Unwrap() error { return e.Err }

// AttributeService resolves category attribute definitions, tolerating
// the field-name and envelope variants upstream gateway versions disagree
// on.
type AttributeService struct {
	categories *CategoryService
	attrCache  *cache.AttributeCache
}

// NewAttributeService constructs an AttributeService. attrCache may be
// nil; caching is then skipped.
func NewAttributeService(categories *CategoryService, attrCache *cache.AttributeCache) *AttributeService {
	return &AttributeService{categories: categories, attrCache: attrCache}
}

// FetchCategoryAttributes returns the attribute definitions for one
// (assumed leaf) category.
func (s *AttributeService) FetchCategoryAttributes(ctx context.Context, marketplace models.Marketplace, client MarketplaceClient, categoryID int) ([]models.AttributeDefinition, error) {
	if s.attrCache != nil {
		if attrs, err := s.attrCache.Get(ctx, marketplace, categoryID); err == nil && len(attrs) > 0 {
			return attrs, nil
		}
	}

	raw, attempts, err := client.ListCategoryAttributes(ctx, categoryID)
	if err != nil {
		return nil, &AttributeResolutionError{CategoryID: categoryID, Attempts: attempts, Err: err}
	}

	attrs := parseAttributes(raw)
	if len(attrs) == 0 {
		return nil, &AttributeResolutionError{CategoryID: categoryID, Attempts: attempts, Err: utils.ErrNoAttributes}
	}

	if s.attrCache != nil {
		if err := s.attrCache.Set(ctx, marketplace, categoryID, attrs); err != nil {
			log.Warn().Err(err).Int("category", categoryID).Msg("failed to cache attributes")
		}
	}
	return attrs, nil
}

// SmartAttributesResult is the outcome of a leaf-resolving attribute
// fetch: which category was actually used and whether it differs from the
// one requested.
type SmartAttributesResult struct {
	RequestedCategoryID int                          `json:"requestedCategoryId"`
	UsedCategoryID      int                          `json:"usedCategoryId"`
	UsedCategoryName    string                       `json:"usedCategoryName"`
	Resolved            bool                         `json:"resolved"`
	Attributes          []models.AttributeDefinition `json:"attributes"`
}

// SmartAttributes resolves a possibly-non-leaf category to its nearest
// leaf before fetching attributes. Legacy mappings often reference branch
// nodes; submission requires a leaf.
func (s *AttributeService) SmartAttributes(ctx context.Context, marketplace models.Marketplace, client MarketplaceClient, flat []models.CategoryNode, categoryID int) (*SmartAttributesResult, error) {
	leaf, err := s.categories.ResolveLeaf(flat, categoryID)
	if err != nil {
		return nil, err
	}

	attrs, err := s.FetchCategoryAttributes(ctx, marketplace, client, leaf.ID)
	if err != nil {
		return nil, err
	}

	return &SmartAttributesResult{
		RequestedCategoryID: categoryID,
		UsedCategoryID:      leaf.ID,
		UsedCategoryName:    leaf.Name,
		Resolved:            leaf.ID != categoryID,
		Attributes:          attrs,
	}, nil
}

// rawAttribute tolerates the field-name variants observed across gateway
// versions: id|attributeId, name|attributeName, values|attributeValues,
// plus a nested attribute{id,name} envelope.
type rawAttribute struct {
	ID          int    `json:"id"`
	AttributeID int    `json:"attributeId"`
	Name        string `json:"name"`
	AttrName    string `json:"attributeName"`

	Attribute *struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"attribute"`

	Required    bool `json:"required"`
	IsRequired  bool `json:"isRequired"`
	AllowCustom bool `json:"allowCustom"`
	CustomValue bool `json:"allowCustomValue"`
	Varianter   bool `json:"varianter"`
	IsVariant   bool `json:"isVariantAttribute"`

	Values     []rawAttributeValue `json:"values"`
	AttrValues []rawAttributeValue `json:"attributeValues"`
}

type rawAttributeValue struct {
	ID      int    `json:"id"`
	ValueID int    `json:"valueId"`
	Name    string `json:"name"`
	Value   string `json:"value"`
}

// attributeWrapperKeys are envelope keys tried in order when the body is
// not a bare array.
var attributeWrapperKeys = []string{"attributes", "categoryAttributes", "result", "data"}

// parseAttributes unwraps the envelope variants and maps every entry into
// AttributeDefinition. An unrecognized body yields an empty slice, which
// the caller converts into an AttributeResolutionError.
func parseAttributes(raw json.RawMessage) []models.AttributeDefinition {
	list, ok := sniffAttributeList(raw, 0)
	if !ok {
		return nil
	}

	attrs := make([]models.AttributeDefinition, 0, len(list))
	for _, a := range list {
		def := models.AttributeDefinition{
			ID:                 firstInt(a.ID, a.AttributeID),
			Name:               firstString(a.Name, a.AttrName),
			Required:           a.Required || a.IsRequired,
			AllowCustomValue:   a.AllowCustom || a.CustomValue,
			IsVariantAttribute: a.Varianter || a.IsVariant,
		}
		if a.Attribute != nil {
			if def.ID == 0 {
				def.ID = a.Attribute.ID
			}
			if def.Name == "" {
				def.Name = a.Attribute.Name
			}
		}
		if def.ID == 0 && def.Name == "" {
			continue
		}

		values := a.Values
		if len(values) == 0 {
			values = a.AttrValues
		}
		for _, v := range values {
			def.Values = append(def.Values, models.AttributeValue{
				ID:   firstInt(v.ID, v.ValueID),
				Name: firstString(v.Name, v.Value),
			})
		}
		attrs = append(attrs, def)
	}
	return attrs
}

func sniffAttributeList(raw json.RawMessage, depth int) ([]rawAttribute, bool) {
	var list []rawAttribute
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, true
	}

	if depth >= 2 {
		return nil, false
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, false
	}
	for _, key := range attributeWrapperKeys {
		if inner, ok := envelope[key]; ok {
			if list, ok := sniffAttributeList(inner, depth+1); ok {
				return list, true
			}
		}
	}
	return nil, false
}

func firstInt(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func firstString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
