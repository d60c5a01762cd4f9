/*
Package ivr simulates the interactive voice response line of a train enquiry service.

A call is a session walking through declarative flow documents. Each caller
input, a keypad digit or a speech-derived utterance, is mapped onto the
options of the current state by the intent recognizer and then applied by the
flow state machine, which collects data, jumps between flows and eventually
ends the call.

# Key Features

  - Deterministic: the same session and input always produce the same turn.
  - Noise tolerant: fillers, greetings, misspellings and embedded entities
    (train numbers, PNRs, classes, stations, dates) are understood.
  - Fail fast: broken flow documents are rejected when the engine is built.
  - Pluggable: session stores, distributed locks and call archives are ports.

# Usage

	eng, err := ivr.New("") // embedded flows
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	res, err := eng.CreateSession(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Message)

	res, err = eng.Advance(ctx, res.SessionID, "I want to check the running status of train 12718", domain.ChannelSpeech)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Message)

	summary, err := eng.EndSession(ctx, res.SessionID)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(summary.TotalExchanges)
*/
package ivr
