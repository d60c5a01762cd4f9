/*
Package intent maps noisy caller utterances onto the options a menu state expects.

Recognition runs as a short pipeline over normalized text: greeting detection,
key and exact synonym matching, then fuzzy matching with an edit-distance ratio.
Entity recognizers (train numbers, PNR codes, travel classes, stations, travel
dates) run on every non-greeting utterance so that a caller can volunteer data
before it is asked for.

A Classifier holds only immutable configuration and is safe for concurrent use.
*/
package intent
