// Package templates keeps the template metadata table in step with the
// email templates stored in the service bucket. An uploaded template has its
// placeholders extracted and recorded as the template's required fields; a
// removed template has its entry deleted.
package templates
