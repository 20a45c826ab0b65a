package web

import (
	"net/http"

	"github.com/hpungsan/wishpair/internal/ops"
	"github.com/hpungsan/wishpair/internal/wish"
)

// HandleBoard handles GET /pairs/{id}/board: the pair's wishes with
// progress, next suggestions and memos rendered from markdown.
// Unknown filter values are ignored.
func (h *Handlers) HandleBoard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := wish.Filter{Sort: wish.SortOption(q.Get("sort"))}
	if c, err := wish.ParseCategory(q.Get("category")); err == nil {
		filter.Category = c
	}
	if p, err := wish.ParsePriority(q.Get("priority")); err == nil {
		filter.Priority = p
	}
	if s, err := wish.ParseStatus(q.Get("status")); err == nil {
		filter.Status = s
	}

	board, err := ops.PairBoard(r.Context(), h.db, r.PathValue("id"), filter)
	if err != nil {
		h.renderer.renderError(w, r, h.log, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, board)
		return
	}

	cards := make([]BoardCard, 0, len(board.Wishes))
	for _, wi := range board.Wishes {
		card := BoardCard{Wish: wi}
		if wi.Memo != nil {
			card.MemoHTML = renderMarkdown(*wi.Memo)
		}
		cards = append(cards, card)
	}

	h.renderer.renderPage(w, "board", BoardPageData{
		PageData: PageData{
			Title:   "Wish board",
			Version: h.renderer.version,
		},
		Board:      board,
		Cards:      cards,
		Next:       board.Next,
		Categories: wish.Categories,
		Category:   string(filter.Category),
		Priority:   string(filter.Priority),
		Status:     string(filter.Status),
		Sort:       string(filter.Sort),
	})
}
