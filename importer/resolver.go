package importer

import (
	"fmt"

	"nfe-import-backend/models"
	"nfe-import-backend/nfe"
	"nfe-import-backend/utils"

	"github.com/rs/zerolog/log"
)

// productResolver maps line items onto catalog products: lookup by internal
// code, then by exact name, then create. Resolutions are cached for the
// lifetime of one document so the same SKU appearing on multiple lines never
// creates the product twice.
type productResolver struct {
	catalog  Catalog
	category *models.ProductCategory
	cache    map[string]string // code-or-name -> product id ("" = creation failed)
}

func newProductResolver(catalog Catalog, category *models.ProductCategory) *productResolver {
	return &productResolver{
		catalog:  catalog,
		category: category,
		cache:    make(map[string]string),
	}
}

// resolveOrCreate returns the product id for the line item, creating a
// minimal catalog entry when nothing matches. A ("", nil) return means an
// earlier line already failed to create this same product.
func (r *productResolver) resolveOrCreate(item nfe.LineItem) (string, error) {
	key := item.InternalCode
	if key == "" {
		key = item.Description
	}
	if id, ok := r.cache[key]; ok {
		return id, nil
	}

	if item.InternalCode != "" {
		product, err := r.catalog.FindByCode(item.InternalCode)
		if err != nil {
			return "", err
		}
		if product != nil {
			r.cache[key] = product.Id
			return product.Id, nil
		}
	}

	if item.Description != "" {
		product, err := r.catalog.FindByName(item.Description)
		if err != nil {
			return "", err
		}
		if product != nil {
			r.cache[key] = product.Id
			return product.Id, nil
		}
	}

	name := item.Description
	if name == "" {
		name = "Produto " + item.InternalCode
	}
	product := &models.Product{
		Name:          name,
		InternalCode:  item.InternalCode,
		NcmCode:       item.NcmCode,
		UnitOfMeasure: item.UnitOfMeasure,
		Type:          models.ProductTypeConsumable,
		Tracking:      models.TrackingNone,
		ListPrice:     utils.Round2(item.UnitValue),
		CostPrice:     utils.Round2(item.UnitValue),
		CategoryID:    r.category.Id,
		Active:        true,
	}
	if err := r.catalog.Create(product); err != nil {
		// Remember the failure so sibling lines with the same SKU don't
		// retry the create inside an already-failing document.
		r.cache[key] = ""
		return "", fmt.Errorf("could not create product %s (%s): %w", name, item.InternalCode, err)
	}

	log.Info().Str("product_id", product.Id).Str("code", item.InternalCode).
		Msgf("product created: %s", name)
	r.cache[key] = product.Id
	return product.Id, nil
}
