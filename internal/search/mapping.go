package search

// productIndexMapping is the mapping for the product index. Full-text fields
// carry the fuzzy analyzer, filterable fields are keywords so term filters
// never score, and name gets a completion sub-field for autocomplete.
const productIndexMapping = `{
  "settings": {
    "number_of_shards": 1,
    "number_of_replicas": 0,
    "analysis": {
      "analyzer": {
        "fuzzy_analyzer": {
          "type": "custom",
          "tokenizer": "standard",
          "filter": ["lowercase", "fuzzy_filter"]
        }
      },
      "filter": {
        "fuzzy_filter": {
          "type": "ngram",
          "min_gram": 2,
          "max_gram": 3
        }
      }
    }
  },
  "mappings": {
    "properties": {
      "name": {
        "type": "text",
        "analyzer": "standard",
        "fields": {
          "keyword": { "type": "keyword", "ignore_above": 256 },
          "suggest": { "type": "completion", "analyzer": "standard" }
        }
      },
      "description": { "type": "text" },
      "brand": {
        "type": "keyword",
        "fields": {
          "text": { "type": "text" }
        }
      },
      "gender":     { "type": "keyword" },
      "categories": { "type": "keyword" },
      "price":      { "type": "float" },
      "mrp":        { "type": "float" },
      "discount":   { "type": "integer" },
      "size":       { "type": "keyword" },
      "color":      { "type": "keyword" },
      "rating":     { "type": "float" },
      "stock":      { "type": "integer" },
      "slug":       { "type": "keyword" },
      "images":     { "type": "keyword", "index": false },
      "tags":       { "type": "keyword" },
      "createdAt":  { "type": "date" }
    }
  }
}`
