package api

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxUploadSize = 32 << 20

func (s *Server) handleUploadAttachment(c *gin.Context) {
	issueID, ok := idParam(c, "issueId")
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file required")
		return
	}
	f, err := fh.Open()
	if err != nil {
		badRequest(c, "cannot read file")
		return
	}
	defer f.Close()

	a, err := s.svc.Attachments.Upload(c.Request.Context(), issueID, currentUser(c).ID,
		fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (s *Server) handleListAttachments(c *gin.Context) {
	issueID, ok := idParam(c, "issueId")
	if !ok {
		return
	}
	list, err := s.svc.Attachments.ListByIssue(c.Request.Context(), issueID)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleDownloadAttachment(c *gin.Context) {
	id, ok := idParam(c, "attachmentId")
	if !ok {
		return
	}
	a, f, err := s.svc.Attachments.Open(c.Request.Context(), id)
	if err != nil {
		s.respondErr(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", a.FileType)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": a.FileName}))
	http.ServeContent(c.Writer, c.Request, a.FileName, a.UploadDate, f)
}

func (s *Server) handleDeleteAttachment(c *gin.Context) {
	id, ok := idParam(c, "attachmentId")
	if !ok {
		return
	}
	if err := s.svc.Attachments.Delete(c.Request.Context(), id, currentUser(c).ID); err != nil {
		s.respondErr(c, err)
		return
	}
	deleted(c, "attachment")
}
