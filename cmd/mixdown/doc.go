// Command mixdown assembles podcast episodes: it normalizes voice sections
// and music beds, joins them with transitions, ducks beds under the intro
// and outro, and encodes one episode file with chapter timing.
package main
