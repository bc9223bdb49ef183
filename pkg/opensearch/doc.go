// Package opensearch creates the OpenSearch client used by the audit sink
// (audit.OpenSearchStorage) and a health probe for it.
package opensearch
