// Package naming derives provider resource names from a cluster tag.
//
// Names follow {tag}-{kind}. Azure addresses resources by name inside a
// resource group, so these functions double as the lookup keys there.
package naming
