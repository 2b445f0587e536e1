package session

import "github.com/libfaes/eventstream/model"

// planChunks partitions events into per-chunk batches against stream's
// current chunk layout, without mutating stream. It returns the chunk list
// as it would look after the events were applied, the events grouped into
// one batch per chunk touched (in chunk order), and the identifiers of any
// chunks that became full as a result.
//
// When chunking is disabled, the whole event slice is returned as a single
// batch and the chunk list is left untouched.
func planChunks(stream model.StreamInformation, originalVersion int, events []model.Event) (chunks []model.StreamChunk, batches [][]model.Event, closedChunkIDs []int) {
	if !stream.ChunkSettings.EnableChunks || stream.ChunkSettings.ChunkSize <= 0 {
		return stream.StreamChunks, [][]model.Event{events}, nil
	}

	chunkSize := stream.ChunkSettings.ChunkSize
	chunks = append([]model.StreamChunk(nil), stream.StreamChunks...)
	if len(chunks) == 0 {
		chunks = append(chunks, model.StreamChunk{
			ChunkIdentifier:   0,
			FirstEventVersion: originalVersion + 1,
			LastEventVersion:  originalVersion,
		})
	}
	tailIdx := len(chunks) - 1

	batchesByChunk := make(map[int][]model.Event)
	var order []int

	for _, e := range events {
		tail := &chunks[tailIdx]
		if tail.Len() >= chunkSize {
			chunks = append(chunks, model.StreamChunk{
				ChunkIdentifier:   tail.ChunkIdentifier + 1,
				FirstEventVersion: e.EventVersion,
				LastEventVersion:  e.EventVersion - 1,
			})
			tailIdx = len(chunks) - 1
			tail = &chunks[tailIdx]
		}

		tail.LastEventVersion = e.EventVersion
		if tail.Len() == chunkSize {
			closedChunkIDs = append(closedChunkIDs, tail.ChunkIdentifier)
		}
		if _, seen := batchesByChunk[tail.ChunkIdentifier]; !seen {
			order = append(order, tail.ChunkIdentifier)
		}
		batchesByChunk[tail.ChunkIdentifier] = append(batchesByChunk[tail.ChunkIdentifier], e)
	}

	batches = make([][]model.Event, 0, len(order))
	for _, id := range order {
		batches = append(batches, batchesByChunk[id])
	}
	return chunks, batches, closedChunkIDs
}

func findChunk(chunks []model.StreamChunk, id int) (model.StreamChunk, bool) {
	for _, c := range chunks {
		if c.ChunkIdentifier == id {
			return c, true
		}
	}
	return model.StreamChunk{}, false
}
