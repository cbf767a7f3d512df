package ecommerce

// Admin API documents used by ShopifyClient

const shopifyProductCreate = `mutation productCreate($product: ProductCreateInput!) {
  productCreate(product: $product) {
    product {
      id
      variants(first: 1) {
        nodes { id inventoryItem { id } }
      }
    }
    userErrors { field message }
  }
}`

const shopifyProductCreateMedia = `mutation productCreateMedia($productId: ID!, $media: [CreateMediaInput!]!) {
  productCreateMedia(productId: $productId, media: $media) {
    media { id status }
    mediaUserErrors { field message code }
  }
}`

const shopifyMediaStatus = `query mediaStatus($ids: [ID!]!) {
  nodes(ids: $ids) {
    ... on MediaImage { id status }
  }
}`

const shopifyVariantsBulkCreate = `mutation productVariantsBulkCreate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkCreate(productId: $productId, variants: $variants) {
    productVariants {
      id
      selectedOptions { name value }
      inventoryItem { id }
    }
    userErrors { field message code }
  }
}`

const shopifyVariantsBulkUpdate = `mutation productVariantsBulkUpdate($productId: ID!, $variants: [ProductVariantsBulkInput!]!) {
  productVariantsBulkUpdate(productId: $productId, variants: $variants) {
    productVariants { id }
    userErrors { field message code }
  }
}`

const shopifyInventorySetQuantities = `mutation inventorySetQuantities($input: InventorySetQuantitiesInput!) {
  inventorySetQuantities(input: $input) {
    inventoryAdjustmentGroup { id }
    userErrors { field message code }
  }
}`

const shopifyPrimaryLocation = `query primaryLocation {
  location { id }
}`

const shopifyProductUpdate = `mutation productUpdate($product: ProductUpdateInput!) {
  productUpdate(product: $product) {
    product { id status }
    userErrors { field message }
  }
}`

const shopifyProductQuery = `query product($id: ID!) {
  product(id: $id) {
    id
    title
    descriptionHtml
    vendor
    productType
    tags
    status
    handle
    templateSuffix
    options { name position optionValues { name } }
    media(first: 100) {
      nodes { ... on MediaImage { id alt status image { url } } }
    }
    variants(first: 250) {
      nodes {
        id
        sku
        price
        compareAtPrice
        inventoryQuantity
        selectedOptions { name value }
        media(first: 1) { nodes { ... on MediaImage { id } } }
        inventoryItem { id requiresShipping measurement { weight { value unit } } }
      }
    }
    metafield(namespace: "catalog_sync", key: "canonical") { value }
  }
}`
