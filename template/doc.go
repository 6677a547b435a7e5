// Package template wraps document chunks into the user message sent to the model.
//
// A wrap is plain text with exactly one payload marker. The chunk replaces the
// marker; everything around it is fixed overhead that every request pays for:
//
//	wrap, err := template.Parse("```<<PAYLOAD>>```", template.DefaultMarker)
//	msg := wrap.Render("Tlie qnick brown f0x")
//	// msg: "```Tlie qnick brown f0x```"
//
// Parse rejects wraps where the marker is absent or repeated instead of
// guessing how to substitute. Both errors match proofread.ErrConfiguration.
//
// The system instructions are loaded separately with LoadInstructions and are
// passed through unchanged.
package template
