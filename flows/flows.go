// Package flows embeds the default menu documents of the train enquiry line.
package flows

import "embed"

// MainFlow is the flow every call starts in.
const MainFlow = "train_main"

// FS holds the default flow documents.
//
//go:embed *.json
var FS embed.FS
