package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"readlater/internal/domain"
)

type responseBody struct {
	Error    *string              `json:"error"`
	Msg      *string              `json:"msg"`
	Article  *domain.ArticleView  `json:"article,omitempty"`
	Articles []domain.ArticleView `json:"articles,omitempty"`
	Tags     []string             `json:"tags,omitempty"`
}

func okBody() responseBody {
	msg := "ok"
	return responseBody{Msg: &msg}
}

func errorBody(message string) responseBody {
	return responseBody{Error: &message}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

func views(articles []domain.Article) []domain.ArticleView {
	out := make([]domain.ArticleView, 0, len(articles))
	for i := range articles {
		out = append(out, articles[i].View())
	}
	return out
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Cannot parse request body."))
		return
	}

	user, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if errors.Is(err, domain.ErrBadCredentials) {
		writeJSON(w, http.StatusBadRequest, errorBody(credentialProblems(err)))
		return
	}
	if err != nil {
		s.serverError(w, "register", err)
		return
	}

	s.setSessionCookie(w, user)
	writeJSON(w, http.StatusOK, okBody())
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Cannot parse request body."))
		return
	}

	user, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if errors.Is(err, domain.ErrBadCredentials) {
		writeJSON(w, http.StatusBadRequest, errorBody("Invalid email or password."))
		return
	}
	if err != nil {
		s.serverError(w, "login", err)
		return
	}

	s.setSessionCookie(w, user)
	writeJSON(w, http.StatusOK, okBody())
}

// credentialProblems strips the sentinel prefix so only the user-facing
// validation messages reach the response.
func credentialProblems(err error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, domain.ErrBadCredentials.Error()+": "); ok {
		return rest
	}
	return msg
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	articles, err := s.articles.ListArticles(r.Context(), currentUser(r).ID)
	if err != nil {
		s.serverError(w, "list articles", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"articlesList": views(articles)})
}

type saveRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Cannot parse given URL."))
		return
	}

	article, err := s.articles.SaveArticle(r.Context(), currentUser(r).ID, req.URL)
	switch {
	case errors.Is(err, domain.ErrInvalidURL):
		writeJSON(w, http.StatusBadRequest, errorBody("Cannot parse given URL."))
	case errors.Is(err, domain.ErrExtractionFailed):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("Could not read the given page."))
	case errors.Is(err, domain.ErrFetchTimeout), errors.Is(err, domain.ErrFetchFailed):
		writeJSON(w, http.StatusBadGateway, errorBody("Could not load the given URL."))
	case err != nil:
		s.serverError(w, "save article", err)
	default:
		view := article.View()
		body := okBody()
		body.Article = &view
		writeJSON(w, http.StatusOK, body)
	}
}

type addTagsRequest struct {
	ArticleID string   `json:"articleId"`
	Tags      []string `json:"tags"`
}

func (s *Server) handleAddTags(w http.ResponseWriter, r *http.Request) {
	var req addTagsRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Cannot apply given tags to the article."))
		return
	}

	tags, err := s.articles.AddTags(r.Context(), currentUser(r).ID, req.ArticleID, req.Tags)
	switch {
	case errors.Is(err, domain.ErrInvalidTags), errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusBadRequest, errorBody("Cannot apply given tags to the article."))
	case err != nil:
		s.serverError(w, "add tags", err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"error": nil,
			"msg":   "ok",
			"tags":  tags,
		})
	}
}

type searchRequest struct {
	Tag string `json:"tag"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Cannot parse request body."))
		return
	}

	articles, err := s.articles.SearchByTag(r.Context(), currentUser(r).ID, req.Tag)
	switch {
	case errors.Is(err, domain.ErrInvalidTags):
		writeJSON(w, http.StatusBadRequest, errorBody("Cannot search with the given tag."))
	case err != nil:
		s.serverError(w, "search articles", err)
	default:
		// Explicit map so an empty result still serializes as [].
		writeJSON(w, http.StatusOK, map[string]any{
			"error":    nil,
			"msg":      "ok",
			"articles": views(articles),
		})
	}
}

type patchRequest struct {
	CanonicalURL string   `json:"canonicalUrl"`
	Title        *string  `json:"title"`
	Author       *string  `json:"author"`
	Tags         []string `json:"tags"`
}

func (s *Server) handlePatch(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Cannot parse request body."))
		return
	}

	patch := domain.Patch{
		RefreshURL: req.CanonicalURL,
		Title:      req.Title,
		Author:     req.Author,
		Tags:       req.Tags,
	}

	article, err := s.articles.ApplyPatch(r.Context(), currentUser(r).ID, r.PathValue("articleId"), patch)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("Cannot update the given article."))
	case errors.Is(err, domain.ErrInvalidURL), errors.Is(err, domain.ErrInvalidTags):
		writeJSON(w, http.StatusBadRequest, errorBody("Cannot update the given article."))
	case err != nil:
		s.serverError(w, "patch article", err)
	default:
		view := article.View()
		body := okBody()
		body.Article = &view
		writeJSON(w, http.StatusOK, body)
	}
}

type deleteRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("Could not delete the given URL."))
		return
	}

	deleted, err := s.articles.DeleteArticle(r.Context(), currentUser(r).ID, req.URL)
	if err != nil || !deleted {
		if err != nil {
			s.logger.Error("delete article", "error", err)
		}
		writeJSON(w, http.StatusBadRequest, errorBody("Could not delete the given URL."))
		return
	}

	writeJSON(w, http.StatusOK, okBody())
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	if err := s.articles.DeleteAll(r.Context()); err != nil {
		s.logger.Error("delete all articles", "error", err)
		msg := "fail"
		if s.dev {
			msg = err.Error()
		}
		empty := ""
		writeJSON(w, http.StatusInternalServerError, responseBody{Error: &msg, Msg: &empty})
		return
	}

	writeJSON(w, http.StatusOK, okBody())
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.logger.Error(op, "error", err)

	msg := "Something went wrong, try again."
	if s.dev {
		msg = err.Error()
	}
	writeJSON(w, http.StatusInternalServerError, errorBody(msg))
}
