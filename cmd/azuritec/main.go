// Command azuritec is the toolchain driver spec.md §6 summarizes as an
// external collaborator: a thin CLI wiring internal/artifact,
// internal/emitter, internal/externlib and internal/vm together. It
// contains no lexer, parser or type-checker — those remain out of
// scope for this module.
package main

func main() {
	Execute()
}
