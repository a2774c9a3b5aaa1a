// Package render turns models, deltas and plans into text artifacts.
//
// The yaml and json renderers dump their input. Any other name refers to a
// Starlark template <name>.star in the template directory, which must define
// a render(data) function returning a string:
//
//	def render(data):
//	    lines = []
//	    for vnf in data["vnfs"]:
//	        lines.append(">> %s.txt" % vnf["name"])
//	        lines.append(vnf["vendor"])
//	    return "\n".join(lines)
//
// Rendered text may contain output markers, lines of the form
// ">> path comment". Split cuts the text at these markers and WriteBlocks
// writes every block to its path atomically, sending unmarked text to
// standard output.
package render
