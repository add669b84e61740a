/*
Package als builds Ambient Location Signal blocks: a short, deterministic
civic-context block that biases a model toward a country's locale without
an explicit "you are in X" instruction.

The block is rendered once per request, placed in the system turn by the
caller (never folded into the user's own message), and its hash and variant
are retained in telemetry as provenance after the text itself is discarded.

Build is pure: the same (country, now, phrase index, weather flag)
always renders the same bytes. Callers needing a fresh civic phrase should
rotate PhraseIndex themselves; the builder never consults wall-clock state
beyond the `now` argument.
*/
package als
