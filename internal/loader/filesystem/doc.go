// Package filesystem loads documents from local directories and watches
// them for new or changed files.
//
// Hidden files and directories are skipped. Files whose MIME type no
// normaliser understands are skipped with a debug log rather than reported
// as failures, so a directory of mixed content still ingests cleanly.
package filesystem
