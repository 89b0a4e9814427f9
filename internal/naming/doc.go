// Package naming normalizes release names and orders media files.
//
// Clean reduces a raw archive or folder name to a presentable title by
// stripping release-ordering prefixes, tag blocks, count markers, size
// annotations, and bracketed spans. CompareNatural orders file paths the
// way a viewer expects: digit runs compare numerically, so img2 precedes
// img10. SafeFileName and FormatTitleStats shape the final archive name
// and the published title.
package naming
