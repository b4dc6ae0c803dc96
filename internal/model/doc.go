// Package model defines the data produced by a page load: the LoadReport,
// its AssetRecords and the Phase enumeration used to attribute failures to
// a pipeline stage.
package model
